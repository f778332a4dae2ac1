// Package supervisor manages the telemetry backend child process.
//
// It owns the full lifecycle: spawning the backend with the expected
// environment (APP_ENV, LOG_LEVEL, HOST, PORT), capturing its output into
// the structured log, detecting exits without blocking, and running the
// TCP probe watchdog that kills and respawns the backend after three
// consecutive failed health probes.
//
// Example usage:
//
//	sup := supervisor.New(supervisor.Config{
//	    Name:   "rs485-backend",
//	    Binary: "/usr/local/bin/rs485-backend",
//	    Host:   "127.0.0.1",
//	    Port:   8000,
//	})
//	sup.SetLogger(logger)
//
//	if err := sup.Spawn(); err != nil {
//	    return err
//	}
//	go sup.Watch(ctx)
//	defer sup.Kill()
package supervisor

// Package config provides YAML-based configuration for the RS-485 bridge core.
//
// Configuration is loaded in three layers, each overriding the last:
//
//  1. Hardcoded defaults (defaultConfig)
//  2. The YAML file passed to Load
//  3. RS485_* environment variables
//
// Environment overrides exist for the values that differ between
// deployments: database path, backend binary/endpoint, API bind address,
// MQTT credentials and the InfluxDB token. Secrets should always come
// from the environment, never the YAML file.
//
// # Usage
//
//	cfg, err := config.Load("config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	db, err := database.Open(database.Config{Path: cfg.Database.Path})
package config

package mqtt

import "fmt"

// Topic prefixes for the RS-485 message bus.
//
// The flat scheme is rs485/{category}/{id}: field-side firmware and
// gateways publish decoded telemetry frames, the core publishes its own
// status and commands.
const (
	// TopicPrefix is the base for all bus topics.
	TopicPrefix = "rs485"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "rs485/system"
)

// Topics provides builders for the bus topic hierarchy. Using these
// helpers keeps topic naming consistent across publishers and
// subscribers.
//
//	topics := mqtt.Topics{}
//	topic := topics.Telemetry("inverter-01")
//	// Returns: "rs485/telemetry/inverter-01"
type Topics struct{}

// Telemetry returns the topic a device's decoded telemetry frames are
// published on.
//
// Example: rs485/telemetry/inverter-01
func (Topics) Telemetry(deviceUID string) string {
	return fmt.Sprintf("%s/telemetry/%s", TopicPrefix, deviceUID)
}

// Command returns the topic for commands addressed to a device.
//
// Example: rs485/command/inverter-01
func (Topics) Command(deviceUID string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, deviceUID)
}

// SystemStatus returns the core status topic. The core publishes
// retained online/offline payloads here; the LWT points at it too.
//
// Example: rs485/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllTelemetry returns a pattern matching telemetry from every device.
//
// Pattern: rs485/telemetry/+
func (Topics) AllTelemetry() string {
	return fmt.Sprintf("%s/telemetry/+", TopicPrefix)
}

// AllCommands returns a pattern matching commands to every device.
//
// Pattern: rs485/command/+
func (Topics) AllCommands() string {
	return fmt.Sprintf("%s/command/+", TopicPrefix)
}

// AllTopics returns a pattern matching the whole bus. Use with caution,
// this receives ALL traffic.
//
// Pattern: rs485/#
func (Topics) AllTopics() string {
	return "rs485/#"
}

package mqtt

import "fmt"

// Topic prefixes for the Lumen Bridge automation bus.
//
// All device topics use the flat scheme: lumen/device/{device_id}/{category}
// where device_id is the topic-safe form of the hardware identifier.
const (
	// TopicPrefix is the base for all bridge topics.
	TopicPrefix = "lumen"

	// TopicPrefixDevice is the base for per-device topics.
	TopicPrefixDevice = "lumen/device"

	// TopicPrefixCatalog is the base for per-model scene catalog topics.
	TopicPrefixCatalog = "lumen/catalog"

	// TopicPrefixRadio is the base for inbound raw radio advertisement
	// frames forwarded by receiver relays.
	TopicPrefixRadio = "lumen/radio"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "lumen/system"
)

// Topics provides builders for Lumen Bridge MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DeviceState("aa-bb-cc-dd", "brightness")
//	// Returns: "lumen/device/aa-bb-cc-dd/state/brightness"
type Topics struct{}

// DeviceState returns the topic for one canonical device state field.
// Published retained so late subscribers see current state.
//
// Example: lumen/device/aa-bb-cc-dd/state/brightness
func (Topics) DeviceState(deviceID, field string) string {
	return fmt.Sprintf("%s/%s/state/%s", TopicPrefixDevice, deviceID, field)
}

// DeviceAvailability returns the topic for device online/offline status.
//
// Example: lumen/device/aa-bb-cc-dd/availability
func (Topics) DeviceAvailability(deviceID string) string {
	return fmt.Sprintf("%s/%s/availability", TopicPrefixDevice, deviceID)
}

// DeviceSet returns the topic for one inbound field intent.
//
// Example: lumen/device/aa-bb-cc-dd/set/power
func (Topics) DeviceSet(deviceID, field string) string {
	return fmt.Sprintf("%s/%s/set/%s", TopicPrefixDevice, deviceID, field)
}

// DeviceEffectSet returns the topic for inbound effect activation intents.
//
// Example: lumen/device/aa-bb-cc-dd/effect/set
func (Topics) DeviceEffectSet(deviceID string) string {
	return fmt.Sprintf("%s/%s/effect/set", TopicPrefixDevice, deviceID)
}

// DeviceScenes returns the topic for a device's compiled scene catalog.
// Published retained; mirrors the model catalog for per-device consumers.
//
// Example: lumen/device/aa-bb-cc-dd/scenes
func (Topics) DeviceScenes(deviceID string) string {
	return fmt.Sprintf("%s/%s/scenes", TopicPrefixDevice, deviceID)
}

// RadioFrame returns the topic a receiver relay publishes raw
// advertisement frames on. The payload is the raw 20-byte frame.
//
// Example: lumen/radio/AA.BB.CC.DD/H6159
func (Topics) RadioFrame(deviceID, model string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixRadio, deviceID, model)
}

// AllRadioFrames returns a pattern matching all inbound radio frames.
//
// Pattern: lumen/radio/+/+
func (Topics) AllRadioFrames() string {
	return TopicPrefixRadio + "/+/+"
}

// Catalog returns the topic for a model's compiled scene catalog.
// Published retained so automation consumers can enumerate effects.
//
// Example: lumen/catalog/H6159
func (Topics) Catalog(model string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixCatalog, model)
}

// SystemStatus returns the gateway status topic (also the LWT topic).
//
// Example: lumen/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllDeviceSets returns a pattern matching all inbound field intents.
//
// Pattern: lumen/device/+/set/+
func (Topics) AllDeviceSets() string {
	return fmt.Sprintf("%s/+/set/+", TopicPrefixDevice)
}

// AllDeviceEffectSets returns a pattern matching all effect intents.
//
// Pattern: lumen/device/+/effect/set
func (Topics) AllDeviceEffectSets() string {
	return fmt.Sprintf("%s/+/effect/set", TopicPrefixDevice)
}

// AllDeviceStates returns a pattern matching all canonical state fields.
//
// Pattern: lumen/device/+/state/+
func (Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/+/state/+", TopicPrefixDevice)
}

// AllTopics returns a pattern matching all Lumen Bridge topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: lumen/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}

package actuator

import "fmt"

// Backend represents the actuator backend type.
type Backend string

const (
	// BackendAuto tries hardware and falls back to the simulation.
	BackendAuto Backend = "auto"
	// BackendHardware drives Raspberry Pi PWM and GPIO.
	BackendHardware Backend = "hardware"
	// BackendSimulated performs no physical action.
	BackendSimulated Backend = "simulated"
)

// Config holds the hardware wiring.
type Config struct {
	// Backend selects the driver. Default: "auto".
	Backend Backend `json:"backend" validate:"oneof=auto hardware simulated"`

	// PanChannel and TiltChannel are hardware PWM channels.
	// Channel 0 is GPIO12, channel 1 is GPIO13.
	PanChannel  int `json:"pan_channel" validate:"min=0,max=1"`
	TiltChannel int `json:"tilt_channel" validate:"min=0,max=1,nefield=PanChannel"`

	// Frequency is the servo PWM frequency in Hz. Default: 50.
	Frequency int `json:"frequency" validate:"min=1,max=1000"`

	// LaserPin is the BCM GPIO number of the laser. Default: 17.
	LaserPin int `json:"laser_pin" validate:"min=0,max=27"`
}

// DefaultConfig returns the reference wiring.
func DefaultConfig() Config {
	return Config{
		Backend:     BackendAuto,
		PanChannel:  0,
		TiltChannel: 1,
		Frequency:   50,
		LaserPin:    17,
	}
}

// pwmChannelPins maps Raspberry Pi hardware PWM channels to their default pins.
var pwmChannelPins = map[int]string{
	0: "GPIO12",
	1: "GPIO13",
}

// ChannelPin returns the GPIO name carrying the given PWM channel.
func ChannelPin(channel int) (string, error) {
	pin, ok := pwmChannelPins[channel]
	if !ok {
		return "", fmt.Errorf("actuator: no pin for PWM channel %d", channel)
	}
	return pin, nil
}

// LaserPinName returns the GPIO name of the laser pin.
func (c Config) LaserPinName() string {
	return fmt.Sprintf("GPIO%d", c.LaserPin)
}

package otkernel

/*------------------------------------------------------------------
 *
 * Purpose:   	Device configuration file.
 *
 * Description:	otkernel.yaml describes one device: its network settings,
 *		which kernel features are on, PHY/MAC parameters, the scan,
 *		beacon and RTC sequences, and for the simulator the traffic
 *		it will hear.
 *
 *		ISF() turns it into the configuration files the kernel
 *		reads, laid out byte for byte as a real device stores them.
 *
 *---------------------------------------------------------------*/

import (
	"encoding/binary"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// If search order is changed, update the README too.
var configSearchLocations = []string{
	"otkernel.yaml", // Current working directory
	"config/otkernel.yaml",
	"../config/otkernel.yaml", // Source tree
	"/usr/local/share/otkernel/otkernel.yaml",
	"/usr/share/otkernel/otkernel.yaml",
	"/etc/otkernel/otkernel.yaml",
}

type NetworkConfig struct {
	VID            uint16 `yaml:"vid"`
	Subnet         uint8  `yaml:"subnet"`
	BeaconSubnet   uint8  `yaml:"beacon_subnet"`
	Active         uint16 `yaml:"active"`
	DDFlags        uint8  `yaml:"dd_flags"`
	BeaconAttempts uint8  `yaml:"beacon_attempts"`
	HoldLimit      uint16 `yaml:"hold_limit"`
}

type PhyMacConfig struct {
	LinkQuality int `yaml:"link_quality"`
	GuardTime   int `yaml:"guard_time"`
	EIRPdBm     int `yaml:"eirp_dbm"`
}

type FeaturesConfig struct {
	Endpoint      bool `yaml:"endpoint"`
	Beacons       bool `yaml:"beacons"`
	ExternalEvent bool `yaml:"external_event"`
	Flood         bool `yaml:"flood"`
	RTCSleep      bool `yaml:"rtc_sleep"`
	RTCHold       bool `yaml:"rtc_hold"`
	RTCBeacon     bool `yaml:"rtc_beacon"`
	Watchdog      int  `yaml:"watchdog"`
}

type ScanRecord struct {
	Channel    uint8  `yaml:"channel"`
	Timeout    int    `yaml:"timeout"` /* Ticks, rounded up to a timeout code. */
	Background bool   `yaml:"background"`
	Next       uint16 `yaml:"next"`
}

type BeaconRecord struct {
	Channel uint8   `yaml:"channel"`
	Params  uint8   `yaml:"params"`
	Call    []uint8 `yaml:"call"`
	Next    uint16  `yaml:"next"`
}

type RTCEntry struct {
	Mask  uint16 `yaml:"mask"`
	Value uint16 `yaml:"value"`
}

type RTCConfig struct {
	Sleep  RTCEntry `yaml:"sleep"`
	Hold   RTCEntry `yaml:"hold"`
	Beacon RTCEntry `yaml:"beacon"`
}

type TrafficFrame struct {
	At         int     `yaml:"at"`
	Channel    uint8   `yaml:"channel"`
	Background bool    `yaml:"background"`
	BadCRC     bool    `yaml:"bad_crc"`
	RSSI       int     `yaml:"rssi"`
	EIRPdBm    int     `yaml:"eirp_dbm"`
	Subnet     uint8   `yaml:"subnet"`
	Response   bool    `yaml:"response"`
	Dialog     uint8   `yaml:"dialog"`
	Flags      uint8   `yaml:"flags"`
	Window     uint8   `yaml:"window"`
	Countdown  uint16  `yaml:"countdown"` /* Background frames only. */
	Payload    []uint8 `yaml:"payload"`
}

type Config struct {
	Network           NetworkConfig  `yaml:"network"`
	SupportedSettings uint16         `yaml:"supported_settings"`
	PhyMac            PhyMacConfig   `yaml:"phymac"`
	Features          FeaturesConfig `yaml:"features"`
	HoldScan          []ScanRecord   `yaml:"hold_scan"`
	SleepScan         []ScanRecord   `yaml:"sleep_scan"`
	Beacons           []BeaconRecord `yaml:"beacons"`
	RTC               RTCConfig      `yaml:"rtc"`
	Traffic           []TrafficFrame `yaml:"traffic"`
	CCABusyPercent    int            `yaml:"cca_busy_percent"`
}

/*
 * A subcontroller that hold scans one channel every second and answers
 * anything it hears.
 */

func DefaultConfig() *Config {
	return &Config{
		Network: NetworkConfig{
			Subnet:         0xF0,
			BeaconSubnet:   0xF0,
			Active:         SET_SUBCONTROLLER,
			BeaconAttempts: 0,
			HoldLimit:      4,
		},
		SupportedSettings: SET_SLEEPSCHED | SET_HOLDSCHED | SET_BEACONSCHED | SET_CLASSMASK,
		PhyMac: PhyMacConfig{
			LinkQuality: 90,
			GuardTime:   5,
		},
		Features: FeaturesConfig{
			Endpoint: true,
			Beacons:  true,
			Flood:    true,
			Watchdog: 64,
		},
		HoldScan: []ScanRecord{
			{Channel: 0x10, Timeout: 16, Next: 1024},
		},
		SleepScan: []ScanRecord{
			{Channel: 0x10, Timeout: 8, Next: 4096},
		},
		CCABusyPercent: 10,
	}
}

func LoadConfig(path string) (*Config, error) {
	var data, readErr = os.ReadFile(path) //nolint:gosec
	if readErr != nil {
		return nil, errors.Wrap(readErr, "reading config")
	}

	var c = DefaultConfig()

	var unmarshalErr = yaml.Unmarshal(data, c)
	if unmarshalErr != nil {
		return nil, errors.Wrapf(unmarshalErr, "parsing config %s", path)
	}

	var validateErr = c.Validate()
	if validateErr != nil {
		return nil, errors.Wrapf(validateErr, "config %s", path)
	}

	return c, nil
}

/*-------------------------------------------------------------------
 *
 * Name:        FindConfig
 *
 * Purpose:     Load the named config file, or search the usual places.
 *
 * Returns:	The config and where it came from.  When nothing is
 *		found the defaults are used and the name is empty.
 *
 *--------------------------------------------------------------------*/

func FindConfig(path string) (*Config, string, error) {
	if path != "" {
		var c, err = LoadConfig(path)
		return c, path, err
	}

	for _, location := range configSearchLocations {
		var _, statErr = os.Stat(location)
		if statErr != nil {
			continue
		}

		var c, err = LoadConfig(location)
		return c, location, err
	}

	kernelLog.Warn("no config file found, using defaults", "searched", configSearchLocations)

	return DefaultConfig(), "", nil
}

func (c *Config) Validate() error {
	if c.PhyMac.GuardTime < 0 {
		return errors.Errorf("phymac.guard_time %d is negative", c.PhyMac.GuardTime)
	}

	if c.CCABusyPercent < 0 || c.CCABusyPercent > 100 {
		return errors.Errorf("cca_busy_percent %d is not a percentage", c.CCABusyPercent)
	}

	for i, b := range c.Beacons {
		if len(b.Call) != 4 {
			return errors.Errorf("beacons[%d].call must be 4 bytes, got %d", i, len(b.Call))
		}
	}

	for i, r := range append(append([]ScanRecord{}, c.HoldScan...), c.SleepScan...) {
		if r.Timeout < 0 || r.Timeout > TIMEOUT_MAX {
			return errors.Errorf("scan record %d: timeout %d out of range", i, r.Timeout)
		}
	}

	return nil
}

func (c *Config) KernelFeatures() Features {
	return Features{
		Endpoint:       c.Features.Endpoint,
		Beacons:        c.Features.Beacons,
		ExternalEvent:  c.Features.ExternalEvent,
		Flood:          c.Features.Flood,
		RTCSleep:       c.Features.RTCSleep,
		RTCHold:        c.Features.RTCHold,
		RTCBeacon:      c.Features.RTCBeacon,
		WatchdogPeriod: c.Features.Watchdog,
	}
}

func (c *Config) KernelPhyMac() PhyMac {
	return PhyMac{
		LinkQuality: c.PhyMac.LinkQuality,
		Tg:          c.PhyMac.GuardTime,
	}
}

func scanSequence(records []ScanRecord) []byte {
	var out = make([]byte, 0, len(records)*SCAN_RECORD_BYTES)

	for _, r := range records {
		var flags = EncodeTimeout(r.Timeout)
		if r.Background {
			flags |= SCAN_BACKGROUND
		}
		out = append(out, r.Channel, flags)
		out = binary.BigEndian.AppendUint16(out, r.Next)
	}

	return out
}

/*-------------------------------------------------------------------
 *
 * Name:        ISF
 *
 * Purpose:     Render the configuration files.
 *
 *--------------------------------------------------------------------*/

func (c *Config) ISF() *MemoryStore {
	var store = NewMemoryStore()

	var netconf = make([]byte, NETCONF_BYTES)
	binary.BigEndian.PutUint16(netconf[0:], c.Network.VID)
	netconf[NETCONF_SUBNET] = c.Network.Subnet
	netconf[NETCONF_BEACON_SUBNET] = c.Network.BeaconSubnet
	binary.BigEndian.PutUint16(netconf[NETCONF_ACTIVE:], c.Network.Active)
	netconf[NETCONF_DD_FLAGS] = c.Network.DDFlags
	netconf[NETCONF_BEACON_ATTEMPTS] = c.Network.BeaconAttempts
	binary.BigEndian.PutUint16(netconf[NETCONF_HOLD_LIMIT:], c.Network.HoldLimit)
	store.Put(ISF_NETWORK_SETTINGS, netconf)

	var features = make([]byte, FEATURES_SUPPORTED+2)
	binary.BigEndian.PutUint16(features[FEATURES_SUPPORTED:], c.SupportedSettings)
	store.Put(ISF_DEVICE_FEATURES, features)

	var rtc = make([]byte, 0, 12)
	for _, e := range []RTCEntry{c.RTC.Sleep, c.RTC.Hold, c.RTC.Beacon} {
		rtc = binary.BigEndian.AppendUint16(rtc, e.Mask)
		rtc = binary.BigEndian.AppendUint16(rtc, e.Value)
	}
	store.Put(ISF_REAL_TIME_SCHED, rtc)

	store.Put(ISF_SLEEP_SCAN_SEQ, scanSequence(c.SleepScan))
	store.Put(ISF_HOLD_SCAN_SEQ, scanSequence(c.HoldScan))

	var beacons = make([]byte, 0, len(c.Beacons)*BEACON_RECORD_BYTES)
	for _, b := range c.Beacons {
		beacons = append(beacons, b.Channel, b.Params)
		beacons = append(beacons, b.Call...)
		beacons = binary.BigEndian.AppendUint16(beacons, b.Next)
	}
	store.Put(ISF_BEACON_TRANSMIT_SEQ, beacons)

	return store
}

/*
 * Frames for the simulated radio, laid out as SimNetwork expects them.
 */

func (c *Config) SimTraffic() []SimFrame {
	var out = make([]SimFrame, 0, len(c.Traffic))

	for _, t := range c.Traffic {
		var data []byte

		if t.Background {
			data = []byte{5, EncodeEIRP(t.EIRPdBm), t.Subnet, byte(t.Countdown >> 8), byte(t.Countdown)}
		} else {
			data = encodeFrameHeader(&frameHeader{
				TxEIRP:  EncodeEIRP(t.EIRPdBm),
				Subnet:  t.Subnet,
				Control: IfThenElse(t.Response, SIM_CTRL_RESPONSE, 0),
			})
			data = append(data, t.Dialog, t.Flags, t.Window)
			data = append(data, t.Payload...)
			data[0] = byte(len(data)) //nolint:gosec
		}

		out = append(out, SimFrame{
			At:         t.At,
			Channel:    t.Channel,
			Background: t.Background,
			BadCRC:     t.BadCRC,
			RSSI:       t.RSSI,
			Data:       data,
		})
	}

	return out
}

package cfg

import (
	"log"
	"time"

	"github.com/ftl/hamradio/cfg"

	"github.com/ftl/rtlscan/core"
)

const (
	testmode        cfg.Key = "rtlscan.testmode"
	deviceIndex     cfg.Key = "rtlscan.deviceIndex"
	sampleRate      cfg.Key = "rtlscan.sampleRate"
	centerFrequency cfg.Key = "rtlscan.centerFrequency"
	gain            cfg.Key = "rtlscan.gain"
	fftSize         cfg.Key = "rtlscan.fftSize"
	captureRate     cfg.Key = "rtlscan.captureRate"
	displayRate     cfg.Key = "rtlscan.displayRate"
	readTimeout     cfg.Key = "rtlscan.readTimeout"
	audioEnabled    cfg.Key = "rtlscan.audioEnabled"
	vfoHost         cfg.Key = "rtlscan.vfoHost"
	webAddress      cfg.Key = "rtlscan.web.address"
	webAnnounce     cfg.Key = "rtlscan.web.announce"
)

// Load the configuration from the default configuration file.
func Load() (core.Configuration, error) {
	configuration, err := cfg.LoadDefault()
	if err != nil {
		return core.Configuration{}, err
	}
	return fromGetter(configuration), nil
}

type getter interface {
	Get(key cfg.Key, defaultValue interface{}) interface{}
}

func fromGetter(configuration getter) core.Configuration {
	defaults := Static()

	result := core.Configuration{
		Testmode:        configuration.Get(testmode, defaults.Testmode).(bool),
		DeviceIndex:     int(configuration.Get(deviceIndex, float64(defaults.DeviceIndex)).(float64)),
		SampleRate:      int(configuration.Get(sampleRate, float64(defaults.SampleRate)).(float64)),
		CenterFrequency: core.Frequency(configuration.Get(centerFrequency, float64(defaults.CenterFrequency)).(float64)),
		FFTSize:         int(configuration.Get(fftSize, float64(defaults.FFTSize)).(float64)),
		CaptureRate:     int(configuration.Get(captureRate, float64(defaults.CaptureRate)).(float64)),
		DisplayRate:     int(configuration.Get(displayRate, float64(defaults.DisplayRate)).(float64)),
		ReadTimeout:     time.Duration(configuration.Get(readTimeout, defaults.ReadTimeout.Seconds()).(float64) * float64(time.Second)),
		AudioEnabled:    configuration.Get(audioEnabled, defaults.AudioEnabled).(bool),
		VFOHost:         configuration.Get(vfoHost, defaults.VFOHost).(string),
		WebAddress:      configuration.Get(webAddress, defaults.WebAddress).(string),
		WebAnnounce:     configuration.Get(webAnnounce, defaults.WebAnnounce).(bool),
	}

	gainValue, err := core.ParseGain(configuration.Get(gain, "auto").(string))
	if err != nil {
		log.Print(err)
		gainValue = core.AutoGain
	}
	result.Gain = gainValue

	return result
}

// Static returns the default configuration.
func Static() core.Configuration {
	return core.Configuration{
		SampleRate:      2048000,
		CenterFrequency: 100000000,
		Gain:            core.AutoGain,
		FFTSize:         1024,
		CaptureRate:     10,
		DisplayRate:     10,
		ReadTimeout:     2 * time.Second,
		WebAddress:      ":8080",
		WebAnnounce:     true,
	}
}

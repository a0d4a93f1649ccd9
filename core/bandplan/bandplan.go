package bandplan

import "github.com/ftl/rtlscan/core"

// Band represents a frequency band.
type Band struct {
	core.FrequencyRange
	Name BandName
	Mode core.DemodMode
}

// Contains indicates if the band contains the given frequency.
func (b Band) Contains(f core.Frequency) bool {
	return f >= b.From && f <= b.To
}

// UnknownBand is the unknown band that contains no frequency.
var UnknownBand = Band{Name: BandUnknown}

// BandName is the name of a frequency band.
type BandName string

// All known bands.
const (
	BandUnknown   BandName = "Unknown"
	Band160m      BandName = "160m"
	Band80m       BandName = "80m"
	Band40m       BandName = "40m"
	Band20m       BandName = "20m"
	Band15m       BandName = "15m"
	Band10m       BandName = "10m"
	BandCB        BandName = "CB"
	Band6m        BandName = "6m"
	BandFM        BandName = "FM Broadcast"
	BandAir       BandName = "Airband"
	Band2m        BandName = "2m"
	BandMarine    BandName = "Marine"
	Band70cm      BandName = "70cm"
	BandPMR446    BandName = "PMR446"
	BandADSB      BandName = "ADS-B"
	Band23cm      BandName = "23cm"
	BandShortwave BandName = "Shortwave"
)

// Bandplan is an ordered list of bands, more specific bands first.
type Bandplan []Band

// ByFrequency returns the first band that contains the given frequency.
func (p Bandplan) ByFrequency(f core.Frequency) Band {
	for _, b := range p {
		if b.Contains(f) {
			return b
		}
	}
	return UnknownBand
}

func band(name BandName, from, to core.Frequency, mode core.DemodMode) Band {
	return Band{Name: name, FrequencyRange: core.FrequencyRange{From: from, To: to}, Mode: mode}
}

// Default is the bandplan used by the scanner. The amateur bands follow IARU region 1.
var Default = Bandplan{
	band(Band160m, 1810000, 2000000, core.ModeSSB),
	band(Band80m, 3500000, 3800000, core.ModeSSB),
	band(Band40m, 7000000, 7200000, core.ModeSSB),
	band(Band20m, 14000000, 14350000, core.ModeSSB),
	band(Band15m, 21000000, 21450000, core.ModeSSB),
	band(BandCB, 26965000, 27405000, core.ModeAM),
	band(Band10m, 28000000, 29700000, core.ModeSSB),
	band(BandShortwave, 2300000, 26100000, core.ModeAM),
	band(Band6m, 50000000, 52000000, core.ModeSSB),
	band(BandFM, 87500000, 108000000, core.ModeFM),
	band(BandAir, 108000000, 137000000, core.ModeAM),
	band(Band2m, 144000000, 146000000, core.ModeFM),
	band(BandMarine, 156000000, 162025000, core.ModeFM),
	band(BandPMR446, 446000000, 446200000, core.ModeFM),
	band(Band70cm, 430000000, 440000000, core.ModeFM),
	band(BandADSB, 1089000000, 1091000000, core.ModeNone),
	band(Band23cm, 1240000000, 1300000000, core.ModeFM),
}

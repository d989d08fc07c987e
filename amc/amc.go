// Package amc implements adaptive modulation and coding: mapping channel
// quality to an MCS and an MCS plus a resource amount to a transport block
// size.
package amc

import (
	"log"
	"math"
)

// Limits of the tables.
const (
	MaxCqi = 15
	MaxMcs = 28
)

// SubcarriersPerRb is the number of subcarriers in a resource block.
const SubcarriersPerRb = 12

// Reference bit error rates of the Shannon model.
const (
	BerLte = 0.00005
	BerNr  = 0.00001
)

const (
	crcBytes       = 3
	maxCbSizeBytes = 8448 / 8
)

var cqiSpectralEfficiency = [MaxCqi + 1]float64{
	0.0, 0.15, 0.23, 0.38, 0.6, 0.88, 1.18, 1.48,
	1.91, 2.41, 2.73, 3.32, 3.9, 4.52, 5.12, 5.55,
}

var mcsSpectralEfficiency = [MaxMcs + 1]float64{
	0.15, 0.19, 0.23, 0.31, 0.38, 0.49, 0.6, 0.74, 0.88, 1.03,
	1.18, 1.33, 1.48, 1.7, 1.91, 2.16, 2.41, 2.57, 2.73, 3.03,
	3.32, 3.61, 3.9, 4.21, 4.52, 4.82, 5.12, 5.33, 5.55,
}

// CqiSpectralEfficiency returns the spectral efficiency of a CQI in bits per
// resource element.
func CqiSpectralEfficiency(cqi uint8) float64 {
	if cqi > MaxCqi {
		log.Panicf("cqi %d out of range", cqi)
	}

	return cqiSpectralEfficiency[cqi]
}

// McsSpectralEfficiency returns the spectral efficiency of an MCS.
func McsSpectralEfficiency(mcs uint8) float64 {
	if mcs > MaxMcs {
		log.Panicf("mcs %d out of range", mcs)
	}

	return mcsSpectralEfficiency[mcs]
}

// McsFromCqi returns the highest MCS whose successor is still no more
// efficient than the CQI.
func McsFromCqi(cqi uint8) uint8 {
	if cqi == 0 {
		return 0
	}

	se := CqiSpectralEfficiency(cqi)

	mcs := uint8(0)
	for mcs < MaxMcs && mcsSpectralEfficiency[mcs+1] <= se {
		mcs++
	}

	return mcs
}

// CqiFromSpectralEfficiency returns the highest CQI below se.
func CqiFromSpectralEfficiency(se float64) uint8 {
	cqi := uint8(0)
	for cqi < MaxCqi && cqiSpectralEfficiency[cqi+1] < se {
		cqi++
	}

	return cqi
}

// McsFromSpectralEfficiency returns the highest MCS below se.
func McsFromSpectralEfficiency(se float64) uint8 {
	mcs := uint8(0)
	for mcs < MaxMcs && mcsSpectralEfficiency[mcs+1] < se {
		mcs++
	}

	return mcs
}

// An Amc turns SINR into CQI and MCS, and MCS into transport block sizes.
type Amc struct {
	ber           float64
	numRefScPerRb uint32
}

// New creates an Amc using the Shannon model at the given BER. numRefScPerRb
// subcarriers of each RB carry reference signals.
func New(ber float64, numRefScPerRb uint32) *Amc {
	if ber <= 0 || ber >= 0.2 {
		log.Panicf("ber %g out of range", ber)
	}

	if numRefScPerRb >= SubcarriersPerRb {
		log.Panicf("%d reference subcarriers leave no room for data",
			numRefScPerRb)
	}

	return &Amc{ber: ber, numRefScPerRb: numRefScPerRb}
}

// NewNr creates an Amc with the NR reference BER and one reference
// subcarrier per RB.
func NewNr() *Amc {
	return New(BerNr, 1)
}

// SpectralEfficiency returns the Shannon capacity, with the BER gap, of a
// linear SINR.
func (a *Amc) SpectralEfficiency(sinr float64) float64 {
	gap := -math.Log(5*a.ber) / 1.5
	return math.Log2(1 + sinr/gap)
}

// RequiredSinrDb returns the SINR, in dB, at which the Shannon model reaches
// the spectral efficiency of the MCS.
func (a *Amc) RequiredSinrDb(mcs uint8) float64 {
	gap := -math.Log(5*a.ber) / 1.5
	linear := (math.Pow(2, McsSpectralEfficiency(mcs)) - 1) * gap

	return 10 * math.Log10(linear)
}

// FromSinr derives the wideband CQI and MCS from per-RB SINR values in dB.
// RBs with no signal are skipped. A link with no usable RB gets CQI 0 and
// MCS 0.
func (a *Amc) FromSinr(sinrDb []float64) (cqi, mcs uint8) {
	sum := 0.0
	n := 0

	for _, db := range sinrDb {
		if math.IsNaN(db) || math.IsInf(db, -1) {
			continue
		}

		linear := math.Pow(10, db/10)
		if linear == 0 {
			continue
		}

		sum += a.SpectralEfficiency(linear)
		n++
	}

	if n == 0 {
		return 0, 0
	}

	avg := sum / float64(n)

	return CqiFromSpectralEfficiency(avg), McsFromSpectralEfficiency(avg)
}

// PayloadSize returns the bytes that rbSymbols resource-block symbols carry
// at the MCS, before CRC.
func (a *Amc) PayloadSize(mcs uint8, rbSymbols uint32) uint32 {
	usefulSc := float64(SubcarriersPerRb - a.numRefScPerRb)
	bits := usefulSc * float64(rbSymbols) * McsSpectralEfficiency(mcs)

	return uint32(math.Floor(bits / 8))
}

// TbSize returns the transport block size, in bytes, after removing the
// CRC of the block and of each code block when the block is segmented.
func (a *Amc) TbSize(mcs uint8, rbSymbols uint32) uint32 {
	payload := a.PayloadSize(mcs, rbSymbols)
	if payload < crcBytes {
		return 0
	}

	tb := payload - crcBytes
	if tb > maxCbSizeBytes {
		numCb := (tb + maxCbSizeBytes - 1) / maxCbSizeBytes
		if payload < numCb*crcBytes {
			return 0
		}

		tb = payload - numCb*crcBytes
	}

	return tb
}

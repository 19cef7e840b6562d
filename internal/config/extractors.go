// SPDX-License-Identifier: MIT
package config

import (
	"fmt"

	"github.com/alice-iceberg/SoundFeatures/internal/analysis"
)

// PitchSettings resolves the pitch section against the stream settings and
// checks it with the extractor's own rules.
func (c *Config) PitchSettings() (analysis.PitchConfig, error) {
	algorithm, err := analysis.ParsePitchAlgorithm(c.Pitch.Algorithm)
	if err != nil {
		return analysis.PitchConfig{}, invalidField("pitch.algorithm", err)
	}
	pc := analysis.PitchConfig{
		SampleRate: c.Audio.SampleRate,
		FrameSize:  c.Audio.FrameSize,
		Algorithm:  algorithm,
		Threshold:  c.Pitch.Threshold,
		MinFreq:    c.Pitch.MinFreq,
		MaxFreq:    c.Pitch.MaxFreq,
	}
	if err := pc.Validate(); err != nil {
		return analysis.PitchConfig{}, invalidField("pitch", err)
	}
	return pc, nil
}

// MFCCSettings resolves the mfcc section against the stream settings. The
// filter bank must fit below the Nyquist frequency of audio.sample_rate.
func (c *Config) MFCCSettings() (analysis.MFCCConfig, error) {
	window, err := analysis.ParseWindowFunc(c.MFCC.Window)
	if err != nil {
		return analysis.MFCCConfig{}, invalidField("mfcc.window", err)
	}
	mc := analysis.MFCCConfig{
		SampleRate:   c.Audio.SampleRate,
		FrameSize:    c.Audio.FrameSize,
		MelFilters:   c.MFCC.MelFilters,
		Coefficients: c.MFCC.Coefficients,
		LowerFreq:    c.MFCC.LowerFreq,
		UpperFreq:    c.MFCC.UpperFreq,
		Window:       window,
	}
	if err := mc.Validate(); err != nil {
		return analysis.MFCCConfig{}, invalidField("mfcc", err)
	}
	return mc, nil
}

// validateExtractors checks the sections of the enabled extractors.
func (c *Config) validateExtractors() error {
	if c.Pitch.Enabled {
		if _, err := c.PitchSettings(); err != nil {
			return err
		}
	}
	if c.MFCC.Enabled {
		if _, err := c.MFCCSettings(); err != nil {
			return err
		}
	}
	return nil
}

// invalidField wraps both ErrInvalid and the extractor's own sentinel.
func invalidField(field string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInvalid, field, err)
}

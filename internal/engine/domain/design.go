package domain

import (
	"fmt"
	"time"
)

type DesignStatus string

const (
	StatusDiscovered         DesignStatus = "DISCOVERED"
	StatusCacheRegistered    DesignStatus = "CACHE_REGISTERED"
	StatusArtifactsGenerated DesignStatus = "ARTIFACTS_GENERATED"
	StatusUploaded           DesignStatus = "UPLOADED"
	StatusSucceeded          DesignStatus = "SUCCEEDED"
	StatusFailed             DesignStatus = "FAILED"
)

// DesignDescriptor identifies one unit of work: a source artwork file that
// becomes one marketplace listing. Immutable once discovered.
type DesignDescriptor struct {
	Slug       string // deterministic cache/grouping key derived from the filename
	Filename   string
	SourcePath string
	VectorPath string // optional companion vector file, "" if absent
	Width      int
	Height     int
}

// Design tracks one descriptor through the per-design state machine:
// DISCOVERED -> CACHE_REGISTERED -> ARTIFACTS_GENERATED -> UPLOADED -> SUCCEEDED,
// with FAILED reachable from any non-terminal state.
type Design struct {
	Descriptor DesignDescriptor
	Status     DesignStatus
	StartTime  time.Time
	EndTime    *time.Time
	FailStage  string // stage that caused the FAILED transition, "" otherwise
}

func NewDesign(d DesignDescriptor) *Design {
	return &Design{
		Descriptor: d,
		Status:     StatusDiscovered,
		StartTime:  time.Now(),
	}
}

func (d *Design) IsTerminal() bool {
	return d.Status == StatusSucceeded || d.Status == StatusFailed
}

// MarkCacheRegistered transitions the design from DISCOVERED to CACHE_REGISTERED.
func (d *Design) MarkCacheRegistered() error {
	return d.transition(StatusDiscovered, StatusCacheRegistered)
}

// MarkArtifactsGenerated transitions the design from CACHE_REGISTERED to ARTIFACTS_GENERATED.
func (d *Design) MarkArtifactsGenerated() error {
	return d.transition(StatusCacheRegistered, StatusArtifactsGenerated)
}

// MarkUploaded transitions the design from ARTIFACTS_GENERATED to UPLOADED.
func (d *Design) MarkUploaded() error {
	return d.transition(StatusArtifactsGenerated, StatusUploaded)
}

// MarkSucceeded transitions the design from UPLOADED to the terminal SUCCEEDED state.
func (d *Design) MarkSucceeded() error {
	if err := d.transition(StatusUploaded, StatusSucceeded); err != nil {
		return err
	}
	now := time.Now()
	d.EndTime = &now
	return nil
}

// MarkFailed transitions the design to the terminal FAILED state from any
// non-terminal state, recording the stage that failed.
func (d *Design) MarkFailed(stage string) error {
	if d.IsTerminal() {
		return NewInvariantViolation(fmt.Sprintf(
			"cannot mark design %s as failed: already terminal in status %s",
			d.Descriptor.Slug, d.Status))
	}
	d.Status = StatusFailed
	d.FailStage = stage
	now := time.Now()
	d.EndTime = &now
	return nil
}

func (d *Design) transition(from, to DesignStatus) error {
	if d.Status != from {
		return NewInvariantViolation(fmt.Sprintf(
			"cannot transition design %s to %s: current status is %s, expected %s",
			d.Descriptor.Slug, to, d.Status, from))
	}
	d.Status = to
	return nil
}

// Duration returns how long the design has been processing or took to finish.
func (d *Design) Duration() time.Duration {
	if d.EndTime != nil {
		return d.EndTime.Sub(d.StartTime)
	}
	return time.Since(d.StartTime)
}

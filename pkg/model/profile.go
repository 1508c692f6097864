package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/grafana/flamekeeper/pkg/flamegraph"
)

type ScriptType string

const (
	ScriptTypeWeb       ScriptType = "web"
	ScriptTypeCLI       ScriptType = "cli"
	ScriptTypeAjax      ScriptType = "ajax"
	ScriptTypeWebSocket ScriptType = "websocket"
	ScriptTypeTask      ScriptType = "task"
)

func ParseScriptType(s string) (ScriptType, error) {
	switch t := ScriptType(strings.ToLower(s)); t {
	case ScriptTypeWeb, ScriptTypeCLI, ScriptTypeAjax, ScriptTypeWebSocket, ScriptTypeTask:
		return t, nil
	case "":
		return ScriptTypeWeb, nil
	default:
		return "", ValidationError{fmt.Errorf("unknown script type %q", s)}
	}
}

// Profile is a persisted profiling run.
type Profile struct {
	ID           int64      `gorm:"primarykey"`
	RequestID    string     `gorm:"type:varchar(64);not null;index"`
	Scope        string     `gorm:"column:groupby;type:varchar(255);not null;index"`
	ScriptType   ScriptType `gorm:"type:varchar(16);not null"`
	Method       string     `gorm:"type:varchar(16)"`
	Path         string     `gorm:"type:varchar(1024)"`
	Parameters   string     `gorm:"type:text"`
	ResponseCode int
	User         string `gorm:"type:varchar(255)"`
	Host         string `gorm:"type:varchar(255)"`
	PID          int

	CreatedAt  time.Time `gorm:"index"`
	UpdatedAt  time.Time
	FinishedAt *time.Time    `gorm:"default:null"`
	Duration   time.Duration `gorm:"index"`
	Reason     Reason        `gorm:"not null;index"`
	LockReason string        `gorm:"type:varchar(255);not null;default:''"`

	FlameData     []byte `gorm:"type:blob"`
	DataSize      int
	SampleCount   int64
	SampleRate    int
	MaxStackDepth int

	DBReads    int64
	DBWrites   int64
	MemoryPeak int64
}

func (Profile) TableName() string { return "profiles" }

// Locked reports whether the profile is exempt from eviction and expiry.
func (p *Profile) Locked() bool { return p.LockReason != "" }

// Finished reports whether the run reached its final save.
func (p *Profile) Finished() bool { return p.FinishedAt != nil }

// AttachFlameGraph encodes the tree and sets every field derived from it.
// The profile is left untouched if encoding fails.
func (p *Profile) AttachFlameGraph(root *flamegraph.Node) error {
	if root == nil {
		root = flamegraph.NewRoot()
	}
	data, err := flamegraph.Encode(root)
	if err != nil {
		return err
	}
	p.FlameData = data
	p.DataSize = len(data)
	p.SampleCount = root.Value
	p.MaxStackDepth = root.Depth()
	return nil
}

// FlameGraph decodes the stored tree.
func (p *Profile) FlameGraph() (*flamegraph.Node, error) {
	if len(p.FlameData) == 0 {
		return flamegraph.NewRoot(), nil
	}
	return flamegraph.Decode(p.FlameData)
}

func (p *Profile) Validate() error {
	var err error
	if p.Scope == "" {
		err = multierror.Append(err, ErrProfileScopeEmpty)
	}
	if p.Reason == ReasonNone {
		err = multierror.Append(err, ErrProfileNoReason)
	}
	if _, typeErr := ParseScriptType(string(p.ScriptType)); typeErr != nil {
		err = multierror.Append(err, typeErr)
	}
	return err
}

// EnsureRequestID assigns a random request id if none is set.
func (p *Profile) EnsureRequestID() {
	if p.RequestID == "" {
		p.RequestID = uuid.NewString()
	}
}

// ProfileUpdate holds the fields to change on an existing profile.
// Nil fields are left as they are.
type ProfileUpdate struct {
	Duration     *time.Duration
	FinishedAt   *time.Time
	Reason       *Reason
	LockReason   *string
	ResponseCode *int

	// FlameGraph replaces the tree and its derived fields.
	FlameGraph *flamegraph.Node
	SampleRate *int

	DBReads    *int64
	DBWrites   *int64
	MemoryPeak *int64
}

// Apply writes the update to p. It is used by stores that keep profiles in
// memory, and to derive column values for SQL stores.
func (u ProfileUpdate) Apply(p *Profile) error {
	if u.FlameGraph != nil {
		if err := p.AttachFlameGraph(u.FlameGraph); err != nil {
			return err
		}
	}
	if u.Duration != nil {
		p.Duration = *u.Duration
	}
	if u.FinishedAt != nil {
		t := *u.FinishedAt
		p.FinishedAt = &t
	}
	if u.Reason != nil {
		p.Reason = *u.Reason
	}
	if u.LockReason != nil {
		p.LockReason = *u.LockReason
	}
	if u.ResponseCode != nil {
		p.ResponseCode = *u.ResponseCode
	}
	if u.SampleRate != nil {
		p.SampleRate = *u.SampleRate
	}
	if u.DBReads != nil {
		p.DBReads = *u.DBReads
	}
	if u.DBWrites != nil {
		p.DBWrites = *u.DBWrites
	}
	if u.MemoryPeak != nil {
		p.MemoryPeak = *u.MemoryPeak
	}
	return nil
}

func (u ProfileUpdate) Validate() error {
	if u.Reason != nil && *u.Reason == ReasonNone {
		return ErrProfileNoReason
	}
	return nil
}

func (u ProfileUpdate) SetReason(r Reason) ProfileUpdate {
	u.Reason = &r
	return u
}

func (u ProfileUpdate) SetLockReason(s string) ProfileUpdate {
	u.LockReason = &s
	return u
}

func (u ProfileUpdate) SetFinishedAt(t time.Time) ProfileUpdate {
	u.FinishedAt = &t
	return u
}

package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionInfo is returned by Recorder.StartSession: activity_type, start
// time and a session id.
type SessionInfo struct {
	ID           uuid.UUID
	ActivityType string
	StartedAt    time.Time
}

// Summary is the collaborator's session close-out payload; its internals
// belong to the (out-of-scope) analytics collaborator, so only the shape
// the orchestrator needs to pass through is declared here.
type Summary struct {
	SessionID    uuid.UUID
	ActivityType string
	StartedAt    time.Time
	EndedAt      time.Time
	DataPoints   int
}

// DataPoint is the record handed to the recorder per emitted window.
type DataPoint struct {
	Timestamp        float64
	HR               float64
	RMSSD            float64
	SDNN             float64
	PNN50            float64
	MeanRR           float64
	LFPower          float64
	HFPower          float64
	LFHFRatio        float64
	Stress           float64
	CognitiveLoad    float64
	Fatigue          float64
	WindowQuality    float64
	FatigueSlope     float64
	FatiguePredicted float64
}

// Recorder is the session recorder collaborator contract: persistence,
// activity tagging and digest analytics are out of scope here, so this
// package only defines the interface plus test doubles.
type Recorder interface {
	StartSession(activityType string) (SessionInfo, error)
	StopSession() (*Summary, error)
	IsRecording() bool
	RecordDataPoint(DataPoint) error
}

// NoopRecorder discards every data point; used when no recorder is wired.
type NoopRecorder struct{}

func (NoopRecorder) StartSession(activityType string) (SessionInfo, error) {
	return SessionInfo{ID: uuid.New(), ActivityType: activityType, StartedAt: time.Now()}, nil
}
func (NoopRecorder) StopSession() (*Summary, error)         { return nil, nil }
func (NoopRecorder) IsRecording() bool                       { return false }
func (NoopRecorder) RecordDataPoint(DataPoint) error         { return nil }

// MemoryRecorder is an in-process test double that retains every data
// point recorded during the active session.
type MemoryRecorder struct {
	mu      sync.Mutex
	current *SessionInfo
	points  []DataPoint
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (m *MemoryRecorder) StartSession(activityType string) (SessionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info := SessionInfo{ID: uuid.New(), ActivityType: activityType, StartedAt: time.Now()}
	m.current = &info
	m.points = nil
	return info, nil
}

func (m *MemoryRecorder) StopSession() (*Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, nil
	}
	summary := &Summary{
		SessionID:    m.current.ID,
		ActivityType: m.current.ActivityType,
		StartedAt:    m.current.StartedAt,
		EndedAt:      time.Now(),
		DataPoints:   len(m.points),
	}
	m.current = nil
	return summary, nil
}

func (m *MemoryRecorder) IsRecording() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil
}

func (m *MemoryRecorder) RecordDataPoint(p DataPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	m.points = append(m.points, p)
	return nil
}

// Points returns a copy of every data point recorded so far, for test
// assertions.
func (m *MemoryRecorder) Points() []DataPoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]DataPoint(nil), m.points...)
}

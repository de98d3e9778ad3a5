// Package events implements the per-instance event bus. The browser
// original emitted untyped payload objects; here the vocabulary is a closed
// set of event types, each carried by its own record. Every delivered event
// carries the emitting instance id and a timestamp.
package events

import "time"

// Type identifies one event kind in the fixed vocabulary.
type Type string

const (
	TypeLoaded                 Type = "loaded"
	TypeLoadError              Type = "loadError"
	TypeProgress               Type = "progress"
	TypePasswordRequired       Type = "passwordRequired"
	TypePageChange             Type = "pageChange"
	TypeScaleChange            Type = "scaleChange"
	TypeRotationChange         Type = "rotationChange"
	TypeDrawingStarted         Type = "drawingStarted"
	TypeDrawingFinished        Type = "drawingFinished"
	TypeAnnotationCreated      Type = "annotationCreated"
	TypeAnnotationUpdated      Type = "annotationUpdated"
	TypeAnnotationDeleted      Type = "annotationDeleted"
	TypeAnnotationSelected     Type = "annotationSelected"
	TypeInteractiveModeChanged Type = "interactiveModeChanged"
	TypeDestroyed              Type = "destroyed"
)

// Meta is embedded in every event record. The bus stamps it at emit time.
type Meta struct {
	InstanceID string
	Timestamp  time.Time
}

func (m *Meta) EventMeta() *Meta { return m }

// Event is the closed sum of event records. Only types in this package
// implement it.
type Event interface {
	EventType() Type
	EventMeta() *Meta
}

// Loaded is emitted once the initial page buffer is ready.
type Loaded struct {
	Meta
	PageCount int
}

func (Loaded) EventType() Type { return TypeLoaded }

// LoadError is emitted when the document provider rejects the load.
type LoadError struct {
	Meta
	Kind    string
	Message string
}

func (LoadError) EventType() Type { return TypeLoadError }

// Progress reports document byte download progress. Total is -1 when the
// source does not advertise its length.
type Progress struct {
	Meta
	LoadedBytes int64
	TotalBytes  int64
}

func (Progress) EventType() Type { return TypeProgress }

// PasswordRequired is emitted when the document is encrypted.
type PasswordRequired struct {
	Meta
}

func (PasswordRequired) EventType() Type { return TypePasswordRequired }

// PageChange is emitted when the observed current page strictly changes.
type PageChange struct {
	Meta
	Page int
}

func (PageChange) EventType() Type { return TypePageChange }

// ScaleChange is emitted after an effective zoom transition completes.
type ScaleChange struct {
	Meta
	Scale float64
}

func (ScaleChange) EventType() Type { return TypeScaleChange }

// RotationChange is emitted after the document rotation changes.
type RotationChange struct {
	Meta
	Degrees int
}

func (RotationChange) EventType() Type { return TypeRotationChange }

// DrawingStarted / DrawingFinished bracket interactive annotation drawing.
type DrawingStarted struct{ Meta }

func (DrawingStarted) EventType() Type { return TypeDrawingStarted }

type DrawingFinished struct{ Meta }

func (DrawingFinished) EventType() Type { return TypeDrawingFinished }

// AnnotationRecord is the payload shared by the annotation events.
type AnnotationRecord struct {
	ID   string
	Page int
	Kind string
	Data map[string]any
}

type AnnotationCreated struct {
	Meta
	Annotation AnnotationRecord
}

func (AnnotationCreated) EventType() Type { return TypeAnnotationCreated }

type AnnotationUpdated struct {
	Meta
	Annotation AnnotationRecord
}

func (AnnotationUpdated) EventType() Type { return TypeAnnotationUpdated }

type AnnotationDeleted struct {
	Meta
	Annotation AnnotationRecord
}

func (AnnotationDeleted) EventType() Type { return TypeAnnotationDeleted }

type AnnotationSelected struct {
	Meta
	Annotation AnnotationRecord
}

func (AnnotationSelected) EventType() Type { return TypeAnnotationSelected }

// InteractiveModeChanged is emitted when annotation interaction toggles.
type InteractiveModeChanged struct {
	Meta
	Enabled bool
}

func (InteractiveModeChanged) EventType() Type { return TypeInteractiveModeChanged }

// Destroyed is the final event an instance ever emits.
type Destroyed struct{ Meta }

func (Destroyed) EventType() Type { return TypeDestroyed }

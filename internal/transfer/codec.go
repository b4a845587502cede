// Package transfer serializes journeys to portable JSON documents and
// imports them back under fresh identifiers.
package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/runnerr0/burrow/internal/journey"
	"github.com/runnerr0/burrow/internal/logging"
)

const (
	// FormatVersion is written to every export and backup envelope.
	FormatVersion = "1.0"

	// Producer and ExportFormat identify documents this package wrote.
	Producer     = "burrow"
	ExportFormat = "journey-export-v1"
)

// Store is the part of the record store the codec reads and writes.
type Store interface {
	GetJourney(ctx context.Context, id int64) (*journey.Journey, error)
	ListJourneys(ctx context.Context) ([]journey.Journey, error)
	CreateJourney(ctx context.Context, j *journey.Journey) (int64, error)
	UpdateJourney(ctx context.Context, j *journey.Journey) error
	CreateNode(ctx context.Context, n *journey.Node) error
	GetNodesByJourney(ctx context.Context, journeyID int64) ([]journey.Node, error)
}

// ProducerMetadata names the program and format that wrote a document.
type ProducerMetadata struct {
	Producer string `json:"producer"`
	Format   string `json:"format"`
}

// Document is a single exported journey.
type Document struct {
	FormatVersion    string           `json:"formatVersion" validate:"required"`
	Journey          *journey.Journey `json:"journey" validate:"required"`
	Nodes            []journey.Node   `json:"nodes" validate:"required"`
	Tree             *journey.Tree    `json:"tree" validate:"-"`
	ExportedAt       int64            `json:"exportedAt"`
	ProducerMetadata ProducerMetadata `json:"producerMetadata"`
}

// Codec exports and imports journeys against a Store.
type Codec struct {
	store    Store
	logger   *zap.Logger
	validate *validator.Validate
	now      func() time.Time
	newID    func() string
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// WithIDGenerator overrides how imported nodes are named.
func WithIDGenerator(newID func() string) Option {
	return func(c *Codec) { c.newID = newID }
}

// New creates a Codec. A nil logger disables logging.
func New(store Store, logger *zap.Logger, opts ...Option) *Codec {
	c := &Codec{
		store:    store,
		logger:   logging.OrNop(logger).Named("transfer"),
		validate: newValidator(),
		now:      time.Now,
	}
	c.newID = c.importedNodeID
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// importedNodeID combines a nanosecond timestamp with a random UUID so a
// new id can never collide with one already stored.
func (c *Codec) importedNodeID() string {
	return fmt.Sprintf("node_imported_%d_%s", c.now().UnixNano(), uuid.NewString())
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// check validates an envelope and converts the first failure to a
// *FormatError.
func (c *Codec) check(v any) error {
	err := c.validate.Struct(v)
	if err == nil {
		return nil
	}
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		fe := verrs[0]
		reason := "is invalid"
		if fe.Tag() == "required" {
			reason = "is required"
		}
		return &FormatError{Field: fieldPath(fe.Namespace()), Reason: reason}
	}
	return &FormatError{Field: "document", Reason: err.Error()}
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// legacyMetadata is the producer block written by older exports.
type legacyMetadata struct {
	Extension string `json:"extension"`
	Format    string `json:"format"`
}

// wireDocument accepts both current and legacy envelope keys.
type wireDocument struct {
	FormatVersion    string            `json:"formatVersion"`
	Version          string            `json:"version"`
	Journey          *journey.Journey  `json:"journey"`
	Nodes            []journey.Node    `json:"nodes"`
	Tree             *journey.Tree     `json:"tree"`
	ExportedAt       int64             `json:"exportedAt"`
	ProducerMetadata *ProducerMetadata `json:"producerMetadata"`
	Metadata         *legacyMetadata   `json:"metadata"`
}

// Decode reads a Document from r. Documents that use the older "version"
// and "metadata" keys are accepted. Malformed JSON yields a *FormatError.
// Decode does not check required fields; Import does.
func Decode(r io.Reader) (*Document, error) {
	var w wireDocument
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return nil, &FormatError{Field: "document", Reason: err.Error()}
	}

	doc := &Document{
		FormatVersion: w.FormatVersion,
		Journey:       w.Journey,
		Nodes:         w.Nodes,
		Tree:          w.Tree,
		ExportedAt:    w.ExportedAt,
	}
	if doc.FormatVersion == "" {
		doc.FormatVersion = w.Version
	}
	switch {
	case w.ProducerMetadata != nil:
		doc.ProducerMetadata = *w.ProducerMetadata
	case w.Metadata != nil:
		doc.ProducerMetadata = ProducerMetadata{Producer: w.Metadata.Extension, Format: w.Metadata.Format}
	}
	return doc, nil
}

// Encode writes v as indented JSON.
func Encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return nil
}

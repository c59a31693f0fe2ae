package deferred

import (
	"fmt"

	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/observability/logging"
	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/seo"
)

// EventRecorder is where the analytics gate forwards its events post-load.
type EventRecorder interface {
	Track(name string, props map[string]any)
}

// GtagSink is the analytics gate payload: the Google tag script plus the
// event forwarder behind it.
type GtagSink struct {
	recorder      EventRecorder
	measurementID string
	logger        *logging.ChanneledLogger
}

// NewGtagSink creates the analytics sink for the given GA measurement ID.
func NewGtagSink(recorder EventRecorder, measurementID string, logger *logging.ChanneledLogger) *GtagSink {
	return &GtagSink{
		recorder:      recorder,
		measurementID: measurementID,
		logger:        logger,
	}
}

// ScriptURL returns the tag script the client loads on activation.
func (s *GtagSink) ScriptURL() string {
	return fmt.Sprintf("https://www.googletagmanager.com/gtag/js?id=%s", s.measurementID)
}

func (s *GtagSink) Activate() error {
	if s.measurementID == "" {
		return fmt.Errorf("no measurement ID configured")
	}
	s.logger.Analytics().Info("Analytics payload activated", "script", s.ScriptURL())
	return nil
}

func (s *GtagSink) Dispatch(event Event) {
	s.recorder.Track(event.Name, event.Params)
}

// SchemaSink is the schema gate payload: the JSON-LD fragments injected into
// the page's fragment set.
type SchemaSink struct {
	fragments *seo.FragmentSet
	logger    *logging.ChanneledLogger
}

// NewSchemaSink creates the schema sink over the shared fragment set.
func NewSchemaSink(fragments *seo.FragmentSet, logger *logging.ChanneledLogger) *SchemaSink {
	return &SchemaSink{fragments: fragments, logger: logger}
}

func (s *SchemaSink) Activate() error {
	injected, err := s.fragments.Inject(seo.OrganizationSchemaID, seo.OrganizationSchema())
	if err != nil {
		return err
	}
	if injected {
		s.logger.System().Debug("Injected schema fragment", "id", seo.OrganizationSchemaID)
	}

	injected, err = s.fragments.Inject(seo.FAQSchemaID, seo.FAQSchema())
	if err != nil {
		return err
	}
	if injected {
		s.logger.System().Debug("Injected schema fragment", "id", seo.FAQSchemaID)
	}
	return nil
}

// Dispatch is a no-op: the schema gate carries no event traffic, but the
// gate contract still drains any buffered events through it.
func (s *SchemaSink) Dispatch(event Event) {
	s.logger.Debug().Debug("Schema gate event discarded", "event", event.Name)
}

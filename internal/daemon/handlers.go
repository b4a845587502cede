package daemon

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/runnerr0/burrow/internal/config"
	"github.com/runnerr0/burrow/internal/journey"
	"github.com/runnerr0/burrow/internal/tracker"
	"github.com/runnerr0/burrow/internal/transfer"
)

// currentNode is the path id that addresses the active tab's node.
const currentNode = "current"

type statusResponse struct {
	Version         string           `json:"version"`
	TrackingEnabled bool             `json:"trackingEnabled"`
	CurrentJourney  *journey.Journey `json:"currentJourney"`
	Journeys        int64            `json:"journeys"`
	Nodes           int64            `json:"nodes"`
	Screenshots     int64            `json:"screenshots"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	counts, err := s.store.Counts(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	current, err := s.tracker.CurrentJourney(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	enabled := true
	if _, err := s.store.GetSetting(ctx, config.KeyTrackingEnabled, &enabled); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Version:         s.version,
		TrackingEnabled: enabled,
		CurrentJourney:  current,
		Journeys:        counts.Journeys,
		Nodes:           counts.Nodes,
		Screenshots:     counts.Screenshots,
	})
}

// eventTypes lists the accepted values of an event's "type" field.
var eventTypes = map[string]bool{
	"tabCreated":         true,
	"navigationTarget":   true,
	"navigationComplete": true,
	"tabActivated":       true,
	"tabRemoved":         true,
	"pageMetadata":       true,
	"screenshot":         true,
}

type eventEnvelope struct {
	Type string `json:"type"`
}

// handleEvent dispatches one tab event on its "type" field. The remaining
// fields are decoded into the matching tracker event.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var env eventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.writeError(w, r, &badRequest{msg: "invalid JSON body: " + err.Error()})
		return
	}

	nodeID, err := s.dispatch(r, env.Type, raw)
	result := "ok"
	if err != nil {
		result = "error"
	}
	label := env.Type
	if !eventTypes[label] {
		label = "unknown"
	}
	s.metrics.Events.WithLabelValues(label, result).Inc()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := map[string]any{"ok": true}
	if nodeID != "" {
		resp["nodeId"] = nodeID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) dispatch(r *http.Request, typ string, raw []byte) (string, error) {
	ctx := r.Context()
	switch typ {
	case "tabCreated":
		var ev tracker.TabCreated
		if err := unmarshalEvent(raw, &ev); err != nil {
			return "", err
		}
		return "", s.tracker.TabCreated(ctx, ev)
	case "navigationTarget":
		var ev tracker.NavigationTarget
		if err := unmarshalEvent(raw, &ev); err != nil {
			return "", err
		}
		return "", s.tracker.NavigationTarget(ctx, ev)
	case "navigationComplete":
		var ev tracker.NavigationComplete
		if err := unmarshalEvent(raw, &ev); err != nil {
			return "", err
		}
		return s.tracker.NavigationComplete(ctx, ev)
	case "tabActivated":
		var ev tracker.TabActivated
		if err := unmarshalEvent(raw, &ev); err != nil {
			return "", err
		}
		return "", s.tracker.TabActivated(ctx, ev)
	case "tabRemoved":
		var ev tracker.TabRemoved
		if err := unmarshalEvent(raw, &ev); err != nil {
			return "", err
		}
		return "", s.tracker.TabRemoved(ctx, ev)
	case "pageMetadata":
		var ev tracker.PageMetadata
		if err := unmarshalEvent(raw, &ev); err != nil {
			return "", err
		}
		return "", s.tracker.PageMetadata(ctx, ev)
	case "screenshot":
		var ev tracker.Screenshot
		if err := unmarshalEvent(raw, &ev); err != nil {
			return "", err
		}
		return "", s.tracker.AttachScreenshot(ctx, ev.TabID, ev.DataURL)
	case "":
		return "", &badRequest{msg: "event type is required"}
	default:
		return "", &badRequest{msg: fmt.Sprintf("unknown event type %q", typ)}
	}
}

func unmarshalEvent(raw []byte, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return &badRequest{msg: "invalid event: " + err.Error()}
	}
	return nil
}

func (s *Server) handleListJourneys(w http.ResponseWriter, r *http.Request) {
	journeys, err := s.store.ListJourneys(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if journeys == nil {
		journeys = []journey.Journey{}
	}
	writeJSON(w, http.StatusOK, journeys)
}

type startJourneyRequest struct {
	Title string `json:"title"`
}

// handleStartJourney begins a new current journey. The body is optional.
func (s *Server) handleStartJourney(w http.ResponseWriter, r *http.Request) {
	var req startJourneyRequest
	if err := decodeBody(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		s.writeError(w, r, err)
		return
	}

	id, err := s.tracker.StartJourney(r.Context(), req.Title)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	j, err := s.store.GetJourney(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, j)
}

func (s *Server) handleCurrentJourney(w http.ResponseWriter, r *http.Request) {
	j, err := s.tracker.CurrentJourney(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := s.tracker.CurrentNode(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"journey": j, "node": n})
}

func (s *Server) handleGetJourney(w http.ResponseWriter, r *http.Request) {
	id, err := journeyID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	j, err := s.store.GetJourney(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	nodes, err := s.store.GetNodesByJourney(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if nodes == nil {
		nodes = []journey.Node{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"journey": j, "nodes": nodes})
}

type treeResponse struct {
	Journey *journey.Journey `json:"journey"`
	Tree    *journey.Tree    `json:"tree"`
	Stats   journey.Stats    `json:"stats"`
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	id, err := journeyID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	j, err := s.store.GetJourney(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	nodes, err := s.store.GetNodesByJourney(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tree := journey.BuildTree(nodes)
	writeJSON(w, http.StatusOK, treeResponse{
		Journey: j,
		Tree:    tree,
		Stats:   journey.ComputeStats(nodes, tree),
	})
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	id, err := journeyID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.store.GetJourney(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := s.analyzer.Insights(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleExport serves a journey document as a download. private=true
// applies the effective excluded-domain list and never includes screenshots.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id, err := journeyID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx := r.Context()
	q := r.URL.Query()

	var (
		doc  *transfer.Document
		kind string
	)
	if q.Get("private") == "true" {
		var excluded []string
		if excluded, err = config.EffectiveExcludedDomains(ctx, s.store); err != nil {
			s.writeError(w, r, err)
			return
		}
		doc, err = s.codec.ExportWithPrivacyFilter(ctx, id, excluded)
		kind = "private"
	} else {
		doc, err = s.codec.Export(ctx, id, q.Get("screenshots") == "true")
		kind = "full"
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.Exports.WithLabelValues(kind).Inc()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="journey-%d.json"`, id))
	if err := transfer.Encode(w, doc); err != nil {
		s.logger.Warn("write export", zap.Int64("journeyID", id), zap.Error(err))
	}
}

// readBody reads the whole request body so that an oversized body surfaces
// as a MaxBytesError rather than as a decode failure.
func readBody(r *http.Request) (io.Reader, error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(raw), nil
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	doc, err := transfer.Decode(body)
	if err == nil {
		var id int64
		id, err = s.codec.Import(r.Context(), doc)
		if err == nil {
			s.metrics.Imports.WithLabelValues("ok").Inc()
			writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
			return
		}
	}

	var fe *transfer.FormatError
	if errors.As(err, &fe) {
		s.metrics.Imports.WithLabelValues("invalid").Inc()
	} else {
		s.metrics.Imports.WithLabelValues("error").Inc()
	}
	s.writeError(w, r, err)
}

func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	b, err := s.codec.ExportAll(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.Exports.WithLabelValues("backup").Inc()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="burrow-backup.json"`)
	if err := transfer.Encode(w, b); err != nil {
		s.logger.Warn("write backup", zap.Error(err))
	}
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	b, err := transfer.DecodeBackup(body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ids, err := s.codec.RestoreBackup(r.Context(), b)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	writeJSON(w, http.StatusCreated, map[string][]int64{"ids": ids})
}

type noteRequest struct {
	Note string `json:"note"`
}

func (s *Server) handleNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.tracker.AddNote(r.Context(), nodeID(r), req.Note); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAha(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.TagAhaMoment(r.Context(), nodeID(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func journeyID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &badRequest{msg: fmt.Sprintf("invalid journey id %q", raw)}
	}
	return id, nil
}

// nodeID maps the "current" alias to the empty id the tracker reads as
// the active tab's node.
func nodeID(r *http.Request) string {
	id := chi.URLParam(r, "id")
	if id == currentNode {
		return ""
	}
	return id
}

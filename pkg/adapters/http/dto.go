package http

import (
	"encoding/json"
	"net/http"

	"github.com/aretw0/tale/pkg/domain"
	"github.com/aretw0/tale/pkg/session"
)

type errorResponse struct {
	Error string `json:"error"`
}

type choiceRequest struct {
	Choice *int `json:"choice"`
}

type sessionResponse struct {
	Snapshot domain.Snapshot `json:"snapshot"`
	View     domain.NodeView `json:"view"`
}

type choiceDTO struct {
	Label  string `json:"label"`
	Target string `json:"target"`
}

type nodeDTO struct {
	ID          string      `json:"id"`
	Kind        domain.Kind `json:"kind"`
	Description string      `json:"description"`
	Terminal    bool        `json:"terminal"`
	Choices     []choiceDTO `json:"choices"`
}

func sessionFrom(ctrl *session.Controller) sessionResponse {
	return sessionResponse{Snapshot: ctrl.Snapshot(), View: ctrl.View()}
}

func nodesFromDomain(g *domain.Graph) []nodeDTO {
	nodes := g.Nodes()
	out := make([]nodeDTO, 0, len(nodes))
	for _, n := range nodes {
		dto := nodeDTO{
			ID:          n.ID,
			Kind:        n.Kind,
			Description: n.Description,
			Terminal:    n.Terminal(),
			Choices:     make([]choiceDTO, 0, len(n.Choices)),
		}
		for _, c := range n.Choices {
			dto.Choices = append(dto.Choices, choiceDTO{Label: c.Label, Target: c.Target.ID})
		}
		out = append(out, dto)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

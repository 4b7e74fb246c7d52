package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/grovetools/ragsync/errors"
	"github.com/grovetools/ragsync/pkg/models"
)

type wireSession struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type wireMessage struct {
	Role      string              `json:"role"`
	Content   string              `json:"content"`
	Timestamp string              `json:"timestamp"`
	Sources   []models.WireSource `json:"sources,omitempty"`
}

type historyResponse struct {
	History []wireMessage `json:"history"`
}

// ListSessions returns the chat sessions of a workspace.
func (c *Client) ListSessions(ctx context.Context, workspace string) ([]models.ChatSession, error) {
	var resp struct {
		Sessions []wireSession `json:"sessions"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/search/sessions/"+url.PathEscape(workspace), nil, &resp); err != nil {
		return nil, err
	}
	sessions := make([]models.ChatSession, 0, len(resp.Sessions))
	for _, s := range resp.Sessions {
		id := strconv.Itoa(s.ID)
		name := s.Name
		if name == "" {
			name = models.SessionName(id)
		}
		sessions = append(sessions, models.ChatSession{ID: id, DisplayName: name})
	}
	return sessions, nil
}

// CreateSession starts a new, empty session and makes it current.
func (c *Client) CreateSession(ctx context.Context, workspace string) (models.ChatSession, error) {
	var resp struct {
		SessionID int `json:"session_id"`
	}
	path := fmt.Sprintf("/api/search/sessions/%s/new", url.PathEscape(workspace))
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return models.ChatSession{}, err
	}
	id := strconv.Itoa(resp.SessionID)
	return models.ChatSession{ID: id, DisplayName: models.SessionName(id)}, nil
}

// LoadSession returns the history of a session and makes it current.
func (c *Client) LoadSession(ctx context.Context, workspace, sessionID string) ([]models.ChatMessage, error) {
	if _, err := strconv.Atoi(sessionID); err != nil {
		return nil, errors.InvalidInput("session id", fmt.Sprintf("%q is not numeric", sessionID))
	}
	var resp historyResponse
	path := fmt.Sprintf("/api/search/sessions/%s/%s", url.PathEscape(workspace), sessionID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return convertHistory(resp.History), nil
}

// History returns the history of the workspace's current session.
func (c *Client) History(ctx context.Context, workspace string) ([]models.ChatMessage, error) {
	var resp historyResponse
	if err := c.do(ctx, http.MethodGet, "/api/search/history/"+url.PathEscape(workspace), nil, &resp); err != nil {
		return nil, err
	}
	return convertHistory(resp.History), nil
}

// ClearHistory moves the workspace to a fresh session and returns it.
func (c *Client) ClearHistory(ctx context.Context, workspace string) (models.ChatSession, error) {
	var resp struct {
		NewSessionID int `json:"new_session_id"`
	}
	if err := c.do(ctx, http.MethodDelete, "/api/search/history/"+url.PathEscape(workspace), nil, &resp); err != nil {
		return models.ChatSession{}, err
	}
	id := strconv.Itoa(resp.NewSessionID)
	return models.ChatSession{ID: id, DisplayName: models.SessionName(id)}, nil
}

func convertHistory(in []wireMessage) []models.ChatMessage {
	out := make([]models.ChatMessage, 0, len(in))
	for _, m := range in {
		ts, _ := models.ParseTimestamp(m.Timestamp)
		out = append(out, models.ChatMessage{
			Role:      parseRole(m.Role),
			Content:   m.Content,
			Sources:   models.SourceRefs(m.Sources),
			Timestamp: ts,
		})
	}
	return out
}

func parseRole(role string) models.Role {
	switch models.Role(role) {
	case models.RoleUser, models.RoleAssistant, models.RoleSystem, models.RoleError:
		return models.Role(role)
	}
	return models.RoleSystem
}

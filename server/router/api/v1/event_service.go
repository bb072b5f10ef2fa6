package v1

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/meetwhenah/meetwhenah/internal/apperr"
	"github.com/meetwhenah/meetwhenah/server/service/event"
)

type createEventRequest struct {
	Token        string `json:"token"`
	Creator      string `json:"creator"`
	EventName    string `json:"event_name"`
	EventDetails string `json:"event_details"`
	Start        string `json:"start"`
	End          string `json:"end"`
	DailyStart   string `json:"daily_start"`
	DailyEnd     string `json:"daily_end"`
	Timezone     string `json:"timezone"`

	MinParticipants int `json:"min_participants"`
	MinBlockSlots   int `json:"min_block_slots"`
	MaxBlockSlots   int `json:"max_block_slots"`
}

// CreateEvent is the webapp's creation form callback. The token binds the
// form back to the chat it was opened from.
func (s *APIV1Service) CreateEvent(c echo.Context) error {
	var req createEventRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, apperr.New(apperr.InvalidInput, "malformed request body"))
	}

	created, err := s.ChatbotService.CreateFromWeb(c.Request().Context(), req.Token, &event.CreateEventRequest{
		Name:            req.EventName,
		Description:     req.EventDetails,
		WindowStartDate: req.Start,
		WindowEndDate:   req.End,
		DailyStartTime:  req.DailyStart,
		DailyEndTime:    req.DailyEnd,
		Timezone:        req.Timezone,
		MinParticipants: req.MinParticipants,
		MinBlockSlots:   req.MinBlockSlots,
		MaxBlockSlots:   req.MaxBlockSlots,
	}, req.Creator)
	if err != nil {
		return errorJSON(c, err)
	}

	return okJSON(c, map[string]any{"event_id": created.ID.String()})
}

type recordAvailabilityRequest struct {
	EventID string   `json:"event_id"`
	User    string   `json:"user"`
	Slots   []string `json:"slots"`
}

// RecordAvailability replaces the user's submitted slots. An empty list
// clears them. The user field is the chat identity the platform vouched for
// when the webapp was opened.
func (s *APIV1Service) RecordAvailability(c echo.Context) error {
	var req recordAvailabilityRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, apperr.New(apperr.InvalidInput, "malformed request body"))
	}

	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		return errorJSON(c, apperr.New(apperr.InvalidInput, "event_id is not a uuid"))
	}

	user, err := s.EventService.Authorizer().IdentityFor(c.Request().Context(), req.User)
	if err != nil {
		return errorJSON(c, err)
	}

	slots := make([]time.Time, 0, len(req.Slots))
	for _, raw := range req.Slots {
		slot, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return errorJSON(c, apperr.New(apperr.InvalidInput, "slot %q is not RFC 3339", raw))
		}
		slots = append(slots, slot)
	}

	if err := s.EventService.RecordAvailability(c.Request().Context(), eventID, user.ID, slots); err != nil {
		return errorJSON(c, err)
	}

	return okJSON(c, nil)
}

// GetAvailability returns the slots one user has submitted for an event.
func (s *APIV1Service) GetAvailability(c echo.Context) error {
	eventID, err := uuid.Parse(c.Param("event_id"))
	if err != nil {
		return errorJSON(c, apperr.New(apperr.InvalidInput, "event_id is not a uuid"))
	}

	user, err := s.EventService.Authorizer().IdentityFor(c.Request().Context(), c.Param("user"))
	if err != nil {
		return errorJSON(c, err)
	}

	slots, err := s.EventService.UserAvailability(c.Request().Context(), eventID, user.ID)
	if err != nil {
		return errorJSON(c, err)
	}

	payload := make([]string, 0, len(slots))
	for _, slot := range slots {
		payload = append(payload, slot.Format(time.RFC3339))
	}
	return okJSON(c, map[string]any{"slots": payload})
}

// GetEvent returns the event row the webapp renders its forms from.
func (s *APIV1Service) GetEvent(c echo.Context) error {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return errorJSON(c, apperr.New(apperr.InvalidInput, "id is not a uuid"))
	}

	found, err := s.EventService.Get(c.Request().Context(), eventID)
	if err != nil {
		return errorJSON(c, err)
	}

	return okJSON(c, map[string]any{"event": map[string]any{
		"id":                found.ID.String(),
		"name":              found.Name,
		"description":       found.Description,
		"state":             string(found.State),
		"window_start_date": found.WindowStartDate,
		"window_end_date":   found.WindowEndDate,
		"daily_start_time":  found.DailyStartTime,
		"daily_end_time":    found.DailyEndTime,
		"timezone":          found.Timezone,
		"min_participants":  found.MinParticipants,
		"min_block_slots":   found.MinBlockSlots,
		"max_block_slots":   found.MaxBlockSlots,
	}})
}

type confirmEventRequest struct {
	EventID       string `json:"event_id"`
	BestStartTime string `json:"best_start_time"`
	BestEndTime   string `json:"best_end_time"`
}

// ConfirmEvent pins the chosen block. Losing a confirmation race is rendered
// as success with the already_confirmed marker.
func (s *APIV1Service) ConfirmEvent(c echo.Context) error {
	var req confirmEventRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, apperr.New(apperr.InvalidInput, "malformed request body"))
	}

	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		return errorJSON(c, apperr.New(apperr.InvalidInput, "event_id is not a uuid"))
	}
	start, err := time.Parse(time.RFC3339, req.BestStartTime)
	if err != nil {
		return errorJSON(c, apperr.New(apperr.InvalidInput, "best_start_time is not RFC 3339"))
	}
	end, err := time.Parse(time.RFC3339, req.BestEndTime)
	if err != nil {
		return errorJSON(c, apperr.New(apperr.InvalidInput, "best_end_time is not RFC 3339"))
	}

	if err := s.EventService.ConfirmEvent(c.Request().Context(), eventID, start, end); err != nil {
		if apperr.Is(err, apperr.Conflict) {
			return okJSON(c, map[string]any{"already_confirmed": true})
		}
		return errorJSON(c, err)
	}

	return okJSON(c, nil)
}

type getBestTimeRequest struct {
	EventID string `json:"event_id"`
}

type blockPayload struct {
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Participants []string  `json:"participants"`
	Score        int       `json:"score"`
}

// GetBestTime returns the tied set of top-scoring blocks, best first. An
// empty set means no block qualifies yet.
func (s *APIV1Service) GetBestTime(c echo.Context) error {
	var req getBestTimeRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, apperr.New(apperr.InvalidInput, "malformed request body"))
	}

	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		return errorJSON(c, apperr.New(apperr.InvalidInput, "event_id is not a uuid"))
	}

	blocks, err := s.EventService.ComputeBestTime(c.Request().Context(), eventID)
	if err != nil {
		return errorJSON(c, err)
	}

	payload := make([]blockPayload, 0, len(blocks))
	for _, block := range blocks {
		participants := make([]string, 0, len(block.Participants))
		for _, id := range block.Participants {
			participants = append(participants, id.String())
		}
		payload = append(payload, blockPayload{
			Start:        block.Start,
			End:          block.End,
			Participants: participants,
			Score:        block.Score(),
		})
	}

	return okJSON(c, map[string]any{"blocks": payload})
}

type shareRequest struct {
	Token   string `json:"token"`
	EventID string `json:"event_id"`
}

// ShareEvent binds an existing event to the chat the share token came from.
func (s *APIV1Service) ShareEvent(c echo.Context) error {
	var req shareRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, apperr.New(apperr.InvalidInput, "malformed request body"))
	}

	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		return errorJSON(c, apperr.New(apperr.InvalidInput, "event_id is not a uuid"))
	}

	if err := s.ChatbotService.ShareFromWeb(c.Request().Context(), req.Token, eventID); err != nil {
		return errorJSON(c, err)
	}

	return okJSON(c, nil)
}

package telephony

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/mbeoliero/ringlink/internal/entity"
)

var (
	ErrMissingRequestId = errors.New("telephony: missing requestid")
	ErrUnknownState     = errors.New("telephony: unknown leg state")
)

// PushPayload is one per-leg status push
type PushPayload struct {
	RequestId string `json:"requestid"`
	Dsc       string `json:"dsc"`
	State     string `json:"state"`
	Timestamp string `json:"timestamp"`
	StateDesc string `json:"stateDesc"`
}

// ToPushEvent validates the payload and converts it
func (p PushPayload) ToPushEvent() (entity.PushEvent, error) {
	if p.RequestId == "" {
		return entity.PushEvent{}, ErrMissingRequestId
	}
	state := entity.LegState(strings.ToLower(strings.TrimSpace(p.State)))
	if !state.Valid() {
		return entity.PushEvent{}, fmt.Errorf("%w: %q", ErrUnknownState, p.State)
	}
	at, err := entity.ParseProviderTime(p.Timestamp)
	if err != nil {
		return entity.PushEvent{}, fmt.Errorf("telephony: timestamp %q: %w", p.Timestamp, err)
	}
	return entity.PushEvent{
		ReqId:     p.RequestId,
		Phone:     p.Dsc,
		State:     state,
		At:        at,
		StateDesc: p.StateDesc,
	}, nil
}

// CDRPayload is one call detail record. Empty time strings mean absent.
type CDRPayload struct {
	RequestId   string  `json:"requestid"`
	Caller      string  `json:"caller"`
	Called      string  `json:"called"`
	CallerStime string  `json:"callerstime"`
	CallerEtime string  `json:"calleretime"`
	CalledStime string  `json:"calledstime"`
	CalledEtime string  `json:"calledetime"`
	Duration    int32   `json:"duration"`
	OriAmount   float64 `json:"oriamount"`
	CustomParm  string  `json:"customParm"`
	StateDesc   string  `json:"stateDesc"`
}

// ToCDR converts the record, cost is kept in cents
func (p CDRPayload) ToCDR() (entity.CDR, error) {
	if p.RequestId == "" {
		return entity.CDR{}, ErrMissingRequestId
	}
	var legs entity.LegTimes
	fields := []struct {
		raw string
		dst *int64
	}{
		{p.CallerStime, &legs.CallerAnswerAt},
		{p.CallerEtime, &legs.CallerHangupAt},
		{p.CalledStime, &legs.CalledAnswerAt},
		{p.CalledEtime, &legs.CalledHangupAt},
	}
	for _, f := range fields {
		at, err := entity.ParseProviderTime(f.raw)
		if err != nil {
			return entity.CDR{}, fmt.Errorf("telephony: cdr time %q: %w", f.raw, err)
		}
		*f.dst = at
	}
	return entity.CDR{
		ReqId:      p.RequestId,
		Legs:       legs,
		Duration:   p.Duration,
		CostCents:  int32(math.Round(p.OriAmount * 100)),
		StateDesc:  p.StateDesc,
		CustomParm: p.CustomParm,
	}, nil
}

// CDRList is the body of a detail record callback and of a fetch response
type CDRList struct {
	CDR []CDRPayload `json:"cdr"`
}

// DecodePush decodes a status push body
func DecodePush(body []byte) (entity.PushEvent, error) {
	var p PushPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return entity.PushEvent{}, fmt.Errorf("telephony: decode push: %w", err)
	}
	return p.ToPushEvent()
}

// DecodeCDRCallback decodes a detail record callback body
func DecodeCDRCallback(body []byte) ([]entity.CDR, error) {
	var list CDRList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("telephony: decode cdr: %w", err)
	}
	cdrs := make([]entity.CDR, 0, len(list.CDR))
	for _, p := range list.CDR {
		cdr, err := p.ToCDR()
		if err != nil {
			return nil, err
		}
		cdrs = append(cdrs, cdr)
	}
	return cdrs, nil
}

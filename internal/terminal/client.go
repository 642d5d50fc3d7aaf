// Package terminal is the protocol client for the access-control
// terminal's ISAPI-style HTTP API: device identity lookup and the
// paginated event-log query.
package terminal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HerbHall/gatesync/internal/probe"
	"github.com/HerbHall/gatesync/pkg/models"
)

// EventSearchPath is the terminal's event-log query endpoint.
const EventSearchPath = "/ISAPI/AccessControl/AcsEvent?format=json"

// eventTimeLayout is what the device accepts: local wall clock, no
// timezone suffix, no sub-second component. The device is assumed
// configured to local time; the client performs no timezone math.
const eventTimeLayout = "2006-01-02T15:04:05"

// ErrNoIdentity is returned when the device never produced a usable
// identity. Usually a credentials problem; the device answers but every
// authenticated request comes back rejected or empty.
var ErrNoIdentity = errors.New("terminal: device returned no usable identity (check address and credentials)")

// Client talks to one terminal at a fixed address.
type Client struct {
	prober   *probe.Prober
	host     string
	port     int
	secure   bool
	pageSize int
	logger   *zap.Logger
}

// New creates a Client bound to the given address. pageSize is a hint
// only; firmware may silently cap the number of entries per page lower
// than requested.
func New(prober *probe.Prober, host string, port int, secure bool, pageSize int, logger *zap.Logger) *Client {
	if pageSize <= 0 {
		pageSize = 30
	}
	return &Client{
		prober:   prober,
		host:     host,
		port:     port,
		secure:   secure,
		pageSize: pageSize,
		logger:   logger,
	}
}

// Host returns the address the client is bound to.
func (c *Client) Host() string { return c.host }

// DeviceInfo fetches the terminal's identity. Unlike a discovery probe
// this is not best-effort: a terminal that cannot identify itself is a
// hard failure for the run.
func (c *Client) DeviceInfo(ctx context.Context) (*models.DeviceIdentity, error) {
	identity := c.prober.Identity(ctx, c.host, c.port, c.secure)
	if identity == nil {
		return nil, ErrNoIdentity
	}
	return identity, nil
}

// eventSearchRequest is the wire shape of one event-log page request.
type eventSearchRequest struct {
	SearchID             string `json:"searchID"`
	SearchResultPosition int    `json:"searchResultPosition"`
	MaxResults           int    `json:"maxResults"`
	Major                int    `json:"major"`
	Minor                int    `json:"minor"`
	StartTime            string `json:"startTime"`
	EndTime              string `json:"endTime"`
}

// eventEntry mirrors one InfoList element. The person identifier shows
// up as employeeNoString or numeric employeeNo depending on firmware.
type eventEntry struct {
	EmployeeNoString string `json:"employeeNoString"`
	EmployeeNo       int    `json:"employeeNo"`
	Name             string `json:"name"`
	CardNo           string `json:"cardNo"`
	Minor            int    `json:"minor"`
	MinorDesc        string `json:"minorDesc"`
	InOutStatus      string `json:"inOutStatus"`
	Time             string `json:"time"`
	DoorNo           int    `json:"doorNo"`
	SerialNo         int    `json:"serialNo"`
}

type eventSearchResult struct {
	TotalMatches int          `json:"totalMatches"`
	InfoList     []eventEntry `json:"InfoList"`
}

// eventSearchResponse accepts both the flat result shape and the one
// nested under an AcsEvent wrapper.
type eventSearchResponse struct {
	eventSearchResult
	AcsEvent *eventSearchResult `json:"AcsEvent"`
}

func (r *eventSearchResponse) result() eventSearchResult {
	if r.AcsEvent != nil {
		return *r.AcsEvent
	}
	return r.eventSearchResult
}

// Events fetches the raw event log for [start, end]. Pagination uses
// the running count of received entries as the next offset because
// firmware may return fewer entries than requested per page; a
// multiplied page index would skip records. fetchAll=false stops after
// the first page regardless of the declared total.
func (c *Client) Events(ctx context.Context, start, end time.Time, fetchAll bool) ([]models.RawEvent, error) {
	scheme := "http"
	if c.secure {
		scheme = "https"
	}
	url := fmt.Sprintf("%s://%s:%d%s", scheme, c.host, c.port, EventSearchPath)
	searchID := uuid.New().String()

	var events []models.RawEvent
	total := -1

	for {
		req := eventSearchRequest{
			SearchID:             searchID,
			SearchResultPosition: len(events),
			MaxResults:           c.pageSize,
			StartTime:            start.Format(eventTimeLayout),
			EndTime:              end.Format(eventTimeLayout),
		}
		body, err := json.Marshal(req)
		if err != nil {
			return nil, fmt.Errorf("terminal: encode event query: %w", err)
		}

		status, respBody, err := c.prober.Exchange(ctx, http.MethodPost, url, body, "application/json")
		if err != nil {
			return nil, fmt.Errorf("terminal: event query: %w", err)
		}
		if status == http.StatusUnauthorized {
			return nil, fmt.Errorf("terminal: event query rejected with 401 (check credentials)")
		}
		if status < 200 || status >= 300 {
			return nil, fmt.Errorf("terminal: event query returned status %d: %s", status, truncate(respBody, 256))
		}

		var resp eventSearchResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return nil, fmt.Errorf("terminal: decode event response: %w", err)
		}
		page := resp.result()
		total = page.TotalMatches

		if len(page.InfoList) == 0 {
			// Firmware misreporting totalMatches would loop forever
			// without this guard.
			break
		}
		for _, entry := range page.InfoList {
			events = append(events, entry.toRawEvent())
		}

		c.logger.Debug("event page received",
			zap.Int("page_entries", len(page.InfoList)),
			zap.Int("running_count", len(events)),
			zap.Int("total_matches", total),
		)

		if !fetchAll || len(events) >= total {
			break
		}
	}

	if total >= 0 && len(events) < total && fetchAll {
		c.logger.Warn("event log short-fall",
			zap.Int("received", len(events)),
			zap.Int("declared_total", total),
		)
	}

	c.logger.Info("event log fetched",
		zap.String("host", c.host),
		zap.String("start", start.Format(eventTimeLayout)),
		zap.String("end", end.Format(eventTimeLayout)),
		zap.Int("events", len(events)),
	)
	return events, nil
}

func (e eventEntry) toRawEvent() models.RawEvent {
	personID := e.EmployeeNoString
	if personID == "" && e.EmployeeNo != 0 {
		personID = strconv.Itoa(e.EmployeeNo)
	}
	return models.RawEvent{
		PersonID:      personID,
		Name:          e.Name,
		CardNo:        e.CardNo,
		Time:          e.Time,
		Direction:     e.InOutStatus,
		DoorNo:        e.DoorNo,
		EventTypeCode: e.Minor,
		SerialNo:      e.SerialNo,
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

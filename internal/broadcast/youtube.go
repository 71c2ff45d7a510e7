package broadcast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const ytAPIBase = "https://www.googleapis.com/youtube/v3"

// YouTubeBridge implements Bridge against the YouTube Data API v3 live
// endpoints, authenticating with a long-lived OAuth refresh token for the
// channel that hosts the broadcasts.
type YouTubeBridge struct {
	client *http.Client
}

func NewYouTubeBridge(ctx context.Context, clientID, clientSecret, refreshToken string) *YouTubeBridge {
	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
	}
	src := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	return &YouTubeBridge{client: oauth2.NewClient(ctx, src)}
}

type ytSnippet struct {
	Title              string `json:"title,omitempty"`
	ScheduledStartTime string `json:"scheduledStartTime,omitempty"`
}

type ytCDN struct {
	IngestionType string           `json:"ingestionType,omitempty"`
	Resolution    string           `json:"resolution,omitempty"`
	FrameRate     string           `json:"frameRate,omitempty"`
	IngestionInfo *ytIngestionInfo `json:"ingestionInfo,omitempty"`
}

type ytIngestionInfo struct {
	StreamName             string `json:"streamName"`
	IngestionAddress       string `json:"ingestionAddress"`
	BackupIngestionAddress string `json:"backupIngestionAddress"`
}

type ytStatus struct {
	LifeCycleStatus string `json:"lifeCycleStatus,omitempty"`
	StreamStatus    string `json:"streamStatus,omitempty"`
	PrivacyStatus   string `json:"privacyStatus,omitempty"`
	HealthStatus    *struct {
		Status string `json:"status"`
	} `json:"healthStatus,omitempty"`
}

type ytContentDetails struct {
	BoundStreamID  string `json:"boundStreamId,omitempty"`
	EnableAutoStop bool   `json:"enableAutoStop,omitempty"`
}

type ytResource struct {
	ID             string            `json:"id,omitempty"`
	Snippet        *ytSnippet        `json:"snippet,omitempty"`
	CDN            *ytCDN            `json:"cdn,omitempty"`
	Status         *ytStatus         `json:"status,omitempty"`
	ContentDetails *ytContentDetails `json:"contentDetails,omitempty"`
}

type ytListResponse struct {
	Items []ytResource `json:"items"`
}

func (b *YouTubeBridge) CreateStream(ctx context.Context, title string) (*Stream, error) {
	body := ytResource{
		Snippet: &ytSnippet{Title: title},
		CDN: &ytCDN{
			IngestionType: "rtmp",
			Resolution:    "variable",
			FrameRate:     "variable",
		},
	}
	var res ytResource
	err := b.call(ctx, http.MethodPost, "/liveStreams", url.Values{
		"part": {"snippet,cdn,contentDetails,status"},
	}, &body, &res)
	if err != nil {
		return nil, fmt.Errorf("create live stream: %w", err)
	}
	if res.CDN == nil || res.CDN.IngestionInfo == nil {
		return nil, fmt.Errorf("create live stream: response missing ingestion info")
	}
	return &Stream{
		ID:                     res.ID,
		StreamKey:              res.CDN.IngestionInfo.StreamName,
		IngestionAddress:       res.CDN.IngestionInfo.IngestionAddress,
		BackupIngestionAddress: res.CDN.IngestionInfo.BackupIngestionAddress,
	}, nil
}

func (b *YouTubeBridge) CreateBroadcast(ctx context.Context, title string, scheduledStart time.Time) (*Broadcast, error) {
	body := ytResource{
		Snippet: &ytSnippet{
			Title:              title,
			ScheduledStartTime: scheduledStart.UTC().Format(time.RFC3339),
		},
		Status:         &ytStatus{PrivacyStatus: "unlisted"},
		ContentDetails: &ytContentDetails{EnableAutoStop: true},
	}
	var res ytResource
	err := b.call(ctx, http.MethodPost, "/liveBroadcasts", url.Values{
		"part": {"snippet,contentDetails,status"},
	}, &body, &res)
	if err != nil {
		return nil, fmt.Errorf("create live broadcast: %w", err)
	}
	out := &Broadcast{
		ID:               res.ID,
		WatchURL:         WatchURL(res.ID),
		ScheduledStartAt: scheduledStart,
	}
	if res.Status != nil {
		out.Privacy = res.Status.PrivacyStatus
	}
	return out, nil
}

func (b *YouTubeBridge) Bind(ctx context.Context, streamID, broadcastID string) error {
	err := b.call(ctx, http.MethodPost, "/liveBroadcasts/bind", url.Values{
		"id":       {broadcastID},
		"streamId": {streamID},
		"part":     {"id,contentDetails"},
	}, nil, nil)
	if err != nil {
		return fmt.Errorf("bind stream %s to broadcast %s: %w", streamID, broadcastID, err)
	}
	return nil
}

func (b *YouTubeBridge) Status(ctx context.Context, broadcastID string) (*Status, error) {
	var res ytListResponse
	err := b.call(ctx, http.MethodGet, "/liveBroadcasts", url.Values{
		"id":   {broadcastID},
		"part": {"status,contentDetails"},
	}, nil, &res)
	if err != nil {
		return nil, fmt.Errorf("get broadcast status: %w", err)
	}
	if len(res.Items) == 0 {
		return nil, fmt.Errorf("get broadcast status: broadcast %s not found", broadcastID)
	}
	item := res.Items[0]
	st := &Status{}
	if item.Status != nil {
		st.Lifecycle = item.Status.LifeCycleStatus
	}
	// Stream health lives on the bound liveStream resource. A failure here
	// leaves the snapshot without health rather than failing the poll.
	if item.ContentDetails != nil && item.ContentDetails.BoundStreamID != "" {
		if health, err := b.streamHealth(ctx, item.ContentDetails.BoundStreamID); err == nil {
			st.StreamHealth = health
		}
	}
	return st, nil
}

func (b *YouTubeBridge) streamHealth(ctx context.Context, streamID string) (string, error) {
	var res ytListResponse
	err := b.call(ctx, http.MethodGet, "/liveStreams", url.Values{
		"id":   {streamID},
		"part": {"status"},
	}, nil, &res)
	if err != nil {
		return "", err
	}
	if len(res.Items) == 0 || res.Items[0].Status == nil || res.Items[0].Status.HealthStatus == nil {
		return "", nil
	}
	return res.Items[0].Status.HealthStatus.Status, nil
}

func (b *YouTubeBridge) End(ctx context.Context, broadcastID string) error {
	err := b.call(ctx, http.MethodPost, "/liveBroadcasts/transition", url.Values{
		"id":              {broadcastID},
		"broadcastStatus": {"complete"},
		"part":            {"id,status"},
	}, nil, nil)
	if err != nil {
		return fmt.Errorf("end broadcast %s: %w", broadcastID, err)
	}
	return nil
}

func (b *YouTubeBridge) SetPrivacy(ctx context.Context, broadcastID, privacy string) error {
	body := ytResource{
		ID:     broadcastID,
		Status: &ytStatus{PrivacyStatus: privacy},
	}
	err := b.call(ctx, http.MethodPut, "/liveBroadcasts", url.Values{
		"part": {"status"},
	}, &body, nil)
	if err != nil {
		return fmt.Errorf("set broadcast %s privacy to %s: %w", broadcastID, privacy, err)
	}
	return nil
}

// WatchURL builds the public viewing URL for a broadcast ID.
func WatchURL(broadcastID string) string {
	return "https://www.youtube.com/watch?v=" + broadcastID
}

type ytErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (b *YouTubeBridge) call(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var payload io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		payload = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, ytAPIBase+path+"?"+query.Encode(), payload)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		var apiErr ytErrorResponse
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 8192))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("youtube api %s %s: %d %s", method, path, res.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("youtube api %s %s: status %d", method, path, res.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"groundtrack/pkg/geo"
	"groundtrack/pkg/model"
)

// N2YO fetches predicted positions from the N2YO REST API.
type N2YO struct {
	client  Getter
	baseURL string
	apiKey  string
}

// NewN2YO creates a source against baseURL, e.g. https://api.n2yo.com/rest/v1/satellite.
func NewN2YO(client Getter, baseURL, apiKey string) *N2YO {
	return &N2YO{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

type n2yoResponse struct {
	Error string `json:"error"`
	Info  struct {
		SatName string      `json:"satname"`
		SatID   json.Number `json:"satid"`
	} `json:"info"`
	Positions []struct {
		Lat *float64 `json:"satlatitude"`
		Lon *float64 `json:"satlongitude"`
	} `json:"positions"`
}

// URL builds the positions request. The API expects the key as a trailing
// path segment rather than a query parameter.
func (n *N2YO) URL(id string, obs Observer) string {
	return fmt.Sprintf("%s/positions/%s/%s/%s/%s/%d/&apiKey=%s",
		n.baseURL,
		url.PathEscape(id),
		formatFloat(obs.Lat),
		formatFloat(obs.Lon),
		formatFloat(obs.Elevation),
		obs.Seconds(),
		url.PathEscape(n.apiKey),
	)
}

// Positions implements PositionSource. Predictions are time dependent and never cached.
func (n *N2YO) Positions(ctx context.Context, id string, obs Observer) (model.Series, error) {
	body, err := n.client.Get(ctx, n.URL(id, obs), "")
	if err != nil {
		return model.Series{}, err
	}

	var resp n2yoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.Series{}, fmt.Errorf("decode n2yo response: %w", err)
	}
	if resp.Error != "" {
		return model.Series{}, fmt.Errorf("n2yo: %s", resp.Error)
	}

	s := model.Series{
		Info: model.ObjectInfo{ID: id, Name: strings.TrimSpace(resp.Info.SatName)},
	}
	if sid := resp.Info.SatID.String(); sid != "" && sid != "0" {
		s.Info.ID = sid
	}
	s.Positions = make([]geo.Point, len(resp.Positions))
	for i, p := range resp.Positions {
		s.Positions[i] = geo.Point{Lat: valueOrNaN(p.Lat), Lon: valueOrNaN(p.Lon)}
	}
	return s, nil
}

func valueOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

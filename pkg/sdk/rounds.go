package sdk

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/absmach/flround/pkg/fl"
)

const (
	roundsEndpoint = "/rounds"
	bestEndpoint   = "/best"
	healthEndpoint = "/health"
)

type RoundPage struct {
	Offset uint64           `json:"offset"`
	Limit  uint64           `json:"limit"`
	Total  uint64           `json:"total"`
	Rounds []fl.RoundRecord `json:"rounds"`
}

type HealthInfo struct {
	Status     string `json:"status"`
	Service    string `json:"service"`
	InstanceID string `json:"instance_id"`
}

func (sdk *flSDK) ListRounds(offset, limit uint64) (RoundPage, error) {
	queries := make([]string, 0)
	if offset > 0 {
		queries = append(queries, fmt.Sprintf("offset=%d", offset))
	}
	if limit > 0 {
		queries = append(queries, fmt.Sprintf("limit=%d", limit))
	}
	query := ""
	if len(queries) > 0 {
		query = "?" + strings.Join(queries, "&")
	}

	url := sdk.coordinatorURL + roundsEndpoint + query

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return RoundPage{}, err
	}

	var page RoundPage
	if err := json.Unmarshal(body, &page); err != nil {
		return RoundPage{}, err
	}

	return page, nil
}

func (sdk *flSDK) Round(round uint64) (fl.RoundRecord, error) {
	url := fmt.Sprintf("%s%s/%d", sdk.coordinatorURL, roundsEndpoint, round)

	return sdk.record(url)
}

func (sdk *flSDK) Best() (fl.RoundRecord, error) {
	return sdk.record(sdk.coordinatorURL + bestEndpoint)
}

func (sdk *flSDK) Health() (HealthInfo, error) {
	body, err := sdk.processRequest(http.MethodGet, sdk.coordinatorURL+healthEndpoint, nil, http.StatusOK)
	if err != nil {
		return HealthInfo{}, err
	}

	var info HealthInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return HealthInfo{}, err
	}

	return info, nil
}

func (sdk *flSDK) record(url string) (fl.RoundRecord, error) {
	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return fl.RoundRecord{}, err
	}

	var rec fl.RoundRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return fl.RoundRecord{}, err
	}

	return rec, nil
}

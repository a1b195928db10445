package sdk

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/absmach/flround/pkg/fl"
)

const CTJSON string = "application/json"

// ErrNotFound is returned when the coordinator answers 404.
var ErrNotFound = errors.New("not found")

type SDK interface {
	// ListRounds lists completed rounds in ascending order.
	//
	// example:
	//  page, _ := sdk.ListRounds(0, 10)
	//  fmt.Println(page.Total)
	ListRounds(offset, limit uint64) (RoundPage, error)

	// Round gets a completed round by its number.
	//
	// example:
	//  rec, _ := sdk.Round(2)
	//  fmt.Println(rec.Metric)
	Round(round uint64) (fl.RoundRecord, error)

	// Best gets the best round selected so far.
	//
	// example:
	//  best, _ := sdk.Best()
	//  fmt.Println(best.Round)
	Best() (fl.RoundRecord, error)

	// Health reports whether the coordinator is up.
	Health() (HealthInfo, error)
}

type flSDK struct {
	coordinatorURL string
	client         *http.Client
}

type Config struct {
	CoordinatorURL  string
	TLSVerification bool
}

func NewSDK(cfg Config) SDK {
	return &flSDK{
		coordinatorURL: strings.TrimSuffix(cfg.CoordinatorURL, "/"),
		client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: !cfg.TLSVerification,
				},
			},
		},
	}
}

type errorRes struct {
	Error string `json:"error"`
}

func (sdk *flSDK) processRequest(method, reqURL string, data []byte, expectedRespCode int) ([]byte, error) {
	req, err := http.NewRequest(method, reqURL, bytes.NewReader(data))
	if err != nil {
		return []byte{}, err
	}

	req.Header.Add("Content-Type", CTJSON)

	resp, err := sdk.client.Do(req)
	if err != nil {
		return []byte{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return []byte{}, err
	}

	if resp.StatusCode != expectedRespCode {
		var e errorRes
		_ = json.Unmarshal(body, &e)
		if resp.StatusCode == http.StatusNotFound {
			return []byte{}, fmt.Errorf("%w: %s", ErrNotFound, e.Error)
		}

		return []byte{}, fmt.Errorf("unexpected response code: %d: %s", resp.StatusCode, e.Error)
	}

	return body, nil
}

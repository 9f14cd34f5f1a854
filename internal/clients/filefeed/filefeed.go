// Package filefeed reads broker state from JSON drop files. The live
// broker integration runs out of process and writes these files, the
// engine only ever consumes point-in-time snapshots.
package filefeed

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/avramidis/optsentry/internal/domain"
)

const (
	positionsFile = "positions.json"
	fillsFile     = "fills.json"
)

// Client implements domain.PositionSource and domain.FillSource from a
// data directory populated by the broker bridge.
type Client struct {
	dir string
	log zerolog.Logger
}

// New creates a file feed rooted at dir
func New(dir string, log zerolog.Logger) *Client {
	return &Client{
		dir: dir,
		log: log.With().Str("component", "filefeed").Logger(),
	}
}

type positionsPayload struct {
	TotalValue  float64              `json:"total_value"`
	BuyingPower float64              `json:"buying_power"`
	Positions   []domain.RawPosition `json:"positions"`
}

// Positions returns the broker positions from the latest drop file. A
// missing file means an empty portfolio, not an error.
func (c *Client) Positions() ([]domain.RawPosition, error) {
	payload, err := c.readPositions()
	if err != nil {
		return nil, err
	}
	return payload.Positions, nil
}

// AccountValues returns total portfolio value and available buying power
func (c *Client) AccountValues() (float64, float64, error) {
	payload, err := c.readPositions()
	if err != nil {
		return 0, 0, err
	}
	return payload.TotalValue, payload.BuyingPower, nil
}

func (c *Client) readPositions() (*positionsPayload, error) {
	path := filepath.Join(c.dir, positionsFile)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		c.log.Debug().Str("path", path).Msg("No positions file, treating as empty portfolio")
		return &positionsPayload{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading positions file: %w", err)
	}

	var payload positionsPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decoding positions file: %w", err)
	}
	return &payload, nil
}

type fillsPayload struct {
	FillIDs []string `json:"fill_ids"`
}

// RecentFillIDs returns fill identifiers from the fills drop file
func (c *Client) RecentFillIDs() ([]string, error) {
	path := filepath.Join(c.dir, fillsFile)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading fills file: %w", err)
	}

	var payload fillsPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decoding fills file: %w", err)
	}
	return payload.FillIDs, nil
}

package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/SamFrieman/c2-beacon-detector/internal/models"
)

// Simulator generates synthetic connection datasets for exercising the
// analyze endpoint: a textbook beacon, benign browsing traffic, or a
// mix of both.
type Simulator struct {
	rng *rand.Rand
}

func NewSimulator(seed int64) *Simulator {
	return &Simulator{rng: rand.New(rand.NewSource(seed))}
}

// GenerateBeacon produces count connections to one destination with a
// fixed interval, small jitter, and near-constant payload size.
func (s *Simulator) GenerateBeacon(count int, interval time.Duration) []models.Connection {
	start := time.Now().Add(-time.Duration(count) * interval)
	conns := make([]models.Connection, 0, count)
	for i := 0; i < count; i++ {
		jitter := time.Duration(s.rng.Intn(2000)-1000) * time.Millisecond
		ts := start.Add(time.Duration(i)*interval + jitter)
		conns = append(conns, models.Connection{
			Timestamp: ts.UnixMilli(),
			Bytes:     int64(1024 + s.rng.Intn(16)),
			SrcIP:     "192.168.1.50",
			DestIP:    "203.0.113.77",
			SrcPort:   40000 + s.rng.Intn(2000),
			DestPort:  443,
		})
	}
	return conns
}

// GenerateBenign produces human-looking traffic: several destinations,
// irregular intervals, variable payloads.
func (s *Simulator) GenerateBenign(count int) []models.Connection {
	dests := []string{"198.51.100.10", "198.51.100.23", "203.0.113.5", "192.0.2.88"}
	ports := []int{80, 443, 443, 8080}

	ts := time.Now().Add(-2 * time.Hour)
	conns := make([]models.Connection, 0, count)
	for i := 0; i < count; i++ {
		ts = ts.Add(time.Duration(2+s.rng.Intn(58)) * time.Second)
		pick := s.rng.Intn(len(dests))
		conns = append(conns, models.Connection{
			Timestamp: ts.UnixMilli(),
			Bytes:     int64(200 + s.rng.Intn(60000)),
			SrcIP:     "192.168.1.50",
			DestIP:    dests[pick],
			SrcPort:   40000 + s.rng.Intn(20000),
			DestPort:  ports[pick],
		})
	}
	return conns
}

func (s *Simulator) dataset(kind string, count int) ([]models.Connection, error) {
	switch kind {
	case "beacon":
		return s.GenerateBeacon(count, 60*time.Second), nil
	case "benign":
		return s.GenerateBenign(count), nil
	case "mixed":
		conns := s.GenerateBeacon(count/2, 60*time.Second)
		return append(conns, s.GenerateBenign(count/2)...), nil
	default:
		return nil, fmt.Errorf("unknown dataset kind %q (want beacon, benign or mixed)", kind)
	}
}

func postDataset(serverURL string, conns []models.Connection) error {
	body, err := json.Marshal(map[string]any{"connections": conns})
	if err != nil {
		return err
	}

	resp, err := http.Post(serverURL+"/api/analyze", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post dataset: %w", err)
	}
	defer resp.Body.Close()

	var result models.DetectionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	fmt.Printf("score=%d classification=%s factors=%d frameworks=%d\n",
		result.Score, result.Classification, len(result.Factors), len(result.Frameworks))
	return nil
}

func writeDataset(path string, conns []models.Connection) error {
	data, err := json.MarshalIndent(map[string]any{"connections": conns}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func main() {
	kind := flag.String("kind", "beacon", "dataset kind: beacon, benign or mixed")
	count := flag.Int("count", 60, "number of connections to generate")
	server := flag.String("server", "http://localhost:8888", "detector server URL")
	out := flag.String("out", "", "write dataset to file instead of posting")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	sim := NewSimulator(*seed)
	conns, err := sim.dataset(*kind, *count)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *out != "" {
		if err := writeDataset(*out, conns); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("wrote %d connections to %s\n", len(conns), *out)
		return
	}

	if err := postDataset(*server, conns); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

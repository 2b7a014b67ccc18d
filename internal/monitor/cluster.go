package monitor

import (
	"hash/fnv"
	"regexp"
	"strings"
	"sync"

	"github.com/glaslos/tlsh"
)

// simHashBits mirrors internal/analyzer/simhash.go's 64-bit width.
const simHashBits = 64

// simHash is adapted from internal/analyzer/simhash.go's SimHash type,
// retargeted from HTML/text-response structure to crash stderr tails: the
// n-gram/feature-vote construction is unchanged, only the feature source.
type simHash uint64

var wsRe = regexp.MustCompile(`\s+`)

func computeStderrSimHash(stderr []byte) simHash {
	text := strings.ToLower(wsRe.ReplaceAllString(string(stderr), " "))
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}
	const nGram = 3
	var features []string
	if len(words) < nGram {
		features = words
	} else {
		for i := 0; i <= len(words)-nGram; i++ {
			features = append(features, strings.Join(words[i:i+nGram], " "))
		}
	}

	var vector [simHashBits]int
	for _, f := range features {
		h := fnvHash(f)
		for i := 0; i < simHashBits; i++ {
			if h&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}
	var out simHash
	for i := 0; i < simHashBits; i++ {
		if vector[i] > 0 {
			out |= 1 << uint(i)
		}
	}
	return out
}

func fnvHash(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

func (h simHash) distance(other simHash) int {
	diff := h ^ other
	count := 0
	for diff != 0 {
		count++
		diff &= diff - 1
	}
	return count
}

const simHashClusterThreshold = 4
const tlshClusterThreshold = 100
const tlshMinSize = 50

// CrashCluster groups crash artifacts whose stderr text and raw bytes are
// fuzzily similar, so a flood of trivially-different abort inputs doesn't
// produce one triage item per input. This is purely for human triage —
// corpus admission never consults clustering.
type CrashCluster struct {
	ID             int
	Representative string
	Members        []string
	stderrHash     simHash
	artifactTLSH   *tlsh.TLSH
}

// Clusterer groups incoming crashes, adapted from
// internal/analyzer/tlsh.go's TLSHAnalyzer baseline-comparison pattern
// generalized from one fixed baseline to an open-ended list of cluster
// representatives compared against each new arrival.
type Clusterer struct {
	mu       sync.Mutex
	clusters []*CrashCluster
	nextID   int
}

func NewClusterer() *Clusterer {
	return &Clusterer{}
}

// Add assigns a crash artifact (identified by path) to an existing cluster
// or creates a new one, returning the cluster ID.
func (c *Clusterer) Add(path string, stderr, artifact []byte) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	sh := computeStderrSimHash(stderr)
	var th *tlsh.TLSH
	if len(artifact) >= tlshMinSize {
		if h, err := tlsh.HashBytes(artifact); err == nil {
			th = h
		}
	}

	for _, cl := range c.clusters {
		if cl.stderrHash.distance(sh) <= simHashClusterThreshold {
			cl.Members = append(cl.Members, path)
			return cl.ID
		}
		if th != nil && cl.artifactTLSH != nil {
			if dist := th.Diff(cl.artifactTLSH); dist <= tlshClusterThreshold {
				cl.Members = append(cl.Members, path)
				return cl.ID
			}
		}
	}

	c.nextID++
	cl := &CrashCluster{
		ID:             c.nextID,
		Representative: path,
		Members:        []string{path},
		stderrHash:     sh,
		artifactTLSH:   th,
	}
	c.clusters = append(c.clusters, cl)
	return cl.ID
}

// Clusters returns a snapshot of the current clustering.
func (c *Clusterer) Clusters() []*CrashCluster {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*CrashCluster, len(c.clusters))
	copy(out, c.clusters)
	return out
}

// Count returns the number of distinct clusters observed so far.
func (c *Clusterer) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clusters)
}

package serving

import (
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// PredictionCache remembers the record produced for a single feature row.
// Keys include the model generation, so entries from a replaced model are
// never served and simply age out.
type PredictionCache struct {
	entries *lru.Cache[string, PredictionRecord]
}

func NewPredictionCache(size int) (*PredictionCache, error) {
	entries, err := lru.New[string, PredictionRecord](size)
	if err != nil {
		return nil, err
	}
	return &PredictionCache{entries: entries}, nil
}

func (c *PredictionCache) Get(generation uint64, row []float64) (PredictionRecord, bool) {
	rec, ok := c.entries.Get(cacheKey(generation, row))
	if !ok {
		return PredictionRecord{}, false
	}
	return rec.clone(), true
}

func (c *PredictionCache) Add(generation uint64, row []float64, rec PredictionRecord) {
	c.entries.Add(cacheKey(generation, row), rec.clone())
}

func (c *PredictionCache) Len() int {
	return c.entries.Len()
}

func cacheKey(generation uint64, row []float64) string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(generation, 10))
	for _, v := range row {
		b.WriteByte('|')
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return b.String()
}

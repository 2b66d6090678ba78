package records

import (
	"bytes"
	"encoding/json"
	"strconv"
)

const IndexGeneral = "General"

// IndexLabels are the UTMB index categories in the order a runner page shows them.
var IndexLabels = []string{IndexGeneral, "20K", "50K", "100K", "100M"}

// SecondaryIndexLabels are summed to break ties between equal General indexes.
var SecondaryIndexLabels = []string{"20K", "50K", "100K", "100M"}

// IndexValue keeps an index value exactly as it was read so that stored data is never
// rewritten, Score interprets it for ranking.
type IndexValue struct {
	raw json.RawMessage
}

func IndexText(text string) IndexValue {
	encoded, _ := json.Marshal(text)
	return IndexValue{raw: encoded}
}

// Score is the integer value of an all-digit string or a non-negative integer number,
// anything else scores 0.
func (v IndexValue) Score() int {
	raw := bytes.TrimSpace(v.raw)
	if len(raw) == 0 {
		return 0
	}
	if raw[0] == '"' {
		var text string
		if json.Unmarshal(raw, &text) != nil {
			return 0
		}
		return digitsValue(text)
	}
	return digitsValue(string(raw))
}

func digitsValue(text string) int {
	if text == "" {
		return 0
	}
	for _, c := range text {
		if c < '0' || c > '9' {
			return 0
		}
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0
	}
	return n
}

func (v IndexValue) MarshalJSON() ([]byte, error) {
	if len(v.raw) == 0 {
		return []byte("null"), nil
	}
	return v.raw, nil
}

func (v *IndexValue) UnmarshalJSON(data []byte) error {
	v.raw = append(json.RawMessage(nil), data...)
	return nil
}

// UTMBIndex maps a category label to its index value.
type UTMBIndex map[string]IndexValue

// Score of a missing label is 0.
func (idx UTMBIndex) Score(label string) int {
	v, ok := idx[label]
	if !ok {
		return 0
	}
	return v.Score()
}

// Participation is one race a runner took part in.
type Participation struct {
	Race       string           `json:"race"`
	Category   Optional[string] `json:"category,omitzero"`
	Time       Optional[string] `json:"time,omitzero"`
	Rank       Optional[string] `json:"rank,omitzero"`
	GenderRank Optional[string] `json:"gender_rank,omitzero"`
}

// RunnerProfile is stored sparsely: absent fields are left out of the JSON.
type RunnerProfile struct {
	ID          string           `json:"id"`
	Name        Optional[string] `json:"name,omitzero"`
	AgeGroup    Optional[string] `json:"age_group,omitzero"`
	Nationality Optional[string] `json:"nationality,omitzero"`
	Index       UTMBIndex        `json:"UTMB Index,omitempty"`
	Club        Optional[string] `json:"club,omitzero"`
	Sponsor     Optional[string] `json:"sponsor,omitzero"`
	Races       []Participation  `json:"races,omitempty"`
}

// RankingScore returns the General index and the sum of the other categories.
func (p RunnerProfile) RankingScore() (primary int, secondary int) {
	primary = p.Index.Score(IndexGeneral)
	for _, label := range SecondaryIndexLabels {
		secondary += p.Index.Score(label)
	}
	return primary, secondary
}

package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// Chain represents the blockchain network identifier using CAIP-2 format
type Chain string

const (
	ChainEthereumMainnet Chain = "eip155:1"
	ChainEthereumSepolia Chain = "eip155:11155111"
)

// IsValidChain checks if a chain is valid
func IsValidChain(chain Chain) bool {
	return chain == ChainEthereumMainnet ||
		chain == ChainEthereumSepolia
}

// Argument is a single named value decoded from an event log.
type Argument struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// UnmarshalJSON keeps numbers as json.Number so integers wider than 53 bits survive transport
func (a *Argument) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name  string `json:"name"`
		Value any    `json:"value"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	a.Name = raw.Name
	a.Value = raw.Value
	return nil
}

// ReturnValues holds the decoded payload of an event in ABI declaration order.
type ReturnValues []Argument

// Get returns the value of the first argument with the given name
func (r ReturnValues) Get(name string) (any, bool) {
	for _, arg := range r {
		if arg.Name == name {
			return arg.Value, true
		}
	}
	return nil, false
}

// String returns the named value when it is a string
func (r ReturnValues) String(name string) string {
	v, ok := r.Get(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// With returns a copy of the values with name set to value, appended if absent.
func (r ReturnValues) With(name string, value any) ReturnValues {
	out := make(ReturnValues, 0, len(r)+1)
	replaced := false
	for _, arg := range r {
		if arg.Name == name {
			out = append(out, Argument{Name: name, Value: value})
			replaced = true
			continue
		}
		out = append(out, arg)
	}
	if !replaced {
		out = append(out, Argument{Name: name, Value: value})
	}
	return out
}

// Map flattens the values into a map, later duplicates overriding earlier ones
func (r ReturnValues) Map() map[string]any {
	m := make(map[string]any, len(r))
	for _, arg := range r {
		m[arg.Name] = arg.Value
	}
	return m
}

// ChainEvent is a decoded contract event as delivered by the chain connector
type ChainEvent struct {
	EventName       string       `json:"event_name"`
	ReturnValues    ReturnValues `json:"return_values"`
	BlockNumber     uint64       `json:"block_number"`
	TransactionHash string       `json:"transaction_hash"`
	LogIndex        uint         `json:"log_index"`
}

// CollectionType is the local collection an event is mirrored into
type CollectionType string

const (
	CollectionProposal CollectionType = "Proposal"
	CollectionVote     CollectionType = "Vote"
	CollectionIgnored  CollectionType = "Ignored"
)

// ParseCollectionType accepts both the current names and the legacy
// "Contract"/"Transaction" vocabulary used by older mapping files.
func ParseCollectionType(s string) CollectionType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "proposal", "contract":
		return CollectionProposal
	case "vote", "transaction":
		return CollectionVote
	default:
		return CollectionIgnored
	}
}

// MappingRules are the behaviour flags attached to an event mapping
type MappingRules struct {
	PollVoting    bool              `json:"poll_voting" mapstructure:"poll_voting"`
	TitleTemplate string            `json:"title_template" mapstructure:"title_template"`
	ChoiceLabels  map[string]string `json:"choice_labels" mapstructure:"choice_labels"`
}

// ChoiceLabel returns the display label for a poll choice, falling back to a capitalised choice name
func (r MappingRules) ChoiceLabel(choice string) string {
	if label, ok := r.ChoiceLabels[choice]; ok && label != "" {
		return label
	}
	if choice == "" {
		return ""
	}
	return strings.ToUpper(choice[:1]) + choice[1:]
}

// EventMapping translates one event name into a local collection kind
type EventMapping struct {
	EventName      string         `json:"event_name" mapstructure:"event_name"`
	CollectionType CollectionType `json:"collection_type" mapstructure:"collection_type"`
	Rules          MappingRules   `json:"rules" mapstructure:"rules"`
}

// Parameter names an on-chain value to snapshot before mirroring
type Parameter struct {
	Name string `json:"name" mapstructure:"name"`
}

// ContractDescriptor describes a tracked contract
type ContractDescriptor struct {
	PublicAddress string         `json:"public_address" mapstructure:"public_address"`
	ABI           string         `json:"abi" mapstructure:"abi"`
	Parameters    []Parameter    `json:"parameters" mapstructure:"parameters"`
	Map           []EventMapping `json:"map" mapstructure:"map"`
	CollectiveID  string         `json:"collective_id" mapstructure:"collective_id"`
	StartBlock    uint64         `json:"start_block" mapstructure:"start_block"`
}

// State is a snapshot of named on-chain parameters for a contract
type State map[string]any

// EventBatch is the unit of delivery between the chain connector and the mirror worker
type EventBatch struct {
	Chain     Chain        `json:"chain"`
	Contract  string       `json:"contract"`
	FromBlock uint64       `json:"from_block"`
	ToBlock   uint64       `json:"to_block"`
	Events    []ChainEvent `json:"events"`
}

// DecimalString renders an integer-like value as a canonical base-10 string.
// Values wider than 64 bits are supported.
func DecimalString(v any) (string, error) {
	switch n := v.(type) {
	case nil:
		return "", ErrMissingProposalIndex
	case *big.Int:
		if n == nil {
			return "", ErrMissingProposalIndex
		}
		return n.String(), nil
	case big.Int:
		return n.String(), nil
	case string:
		return parseDecimal(n)
	case json.Number:
		return parseDecimal(n.String())
	case float64:
		f := new(big.Float).SetFloat64(n)
		i, acc := f.Int(nil)
		if acc != big.Exact {
			return "", fmt.Errorf("non-integer value %v", n)
		}
		return i.String(), nil
	case int:
		return big.NewInt(int64(n)).String(), nil
	case int64:
		return big.NewInt(n).String(), nil
	case int32:
		return big.NewInt(int64(n)).String(), nil
	case uint:
		return new(big.Int).SetUint64(uint64(n)).String(), nil
	case uint64:
		return new(big.Int).SetUint64(n).String(), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(n)).String(), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(n)).String(), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(n)).String(), nil
	default:
		return "", fmt.Errorf("unsupported numeric type %T", v)
	}
}

func parseDecimal(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrMissingProposalIndex
	}
	base := 10
	// some connectors emit 0x-prefixed hex
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}
	i, ok := new(big.Int).SetString(s, base)
	if !ok {
		return "", fmt.Errorf("invalid integer %q", s)
	}
	return i.String(), nil
}

// ChoiceCode reads a vote choice code. Unknown representations yield -1.
func ChoiceCode(v any) int64 {
	s, err := DecimalString(v)
	if err != nil {
		return -1
	}
	i, ok := new(big.Int).SetString(s, 10)
	if !ok || !i.IsInt64() {
		return -1
	}
	return i.Int64()
}

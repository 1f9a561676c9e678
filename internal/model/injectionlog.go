package model

import "encoding/json"

// CacheInfo records where in the cache an injected word lived. Attached
// to an InjectionLog only when the target was a cache word.
type CacheInfo struct {
	Name  string `json:"name"`
	Row   int    `json:"row"`
	Block int    `json:"block"`
	Word  int    `json:"word"`
	InTag bool   `json:"inTag"`
	Dirty bool   `json:"dirty"`
}

// InjectionLog is the record of one fault injection, built by
// internal/inject at perturbation time and completed by
// internal/campaign before publication to internal/eventlog.
//
// Invariant: a log published to the JSON sink always carries a
// non-nil Result.
type InjectionLog struct {
	InjectionTime string     `json:"timestamp"`
	Number        int        `json:"number"`
	Section       string     `json:"section"`
	Address       string     `json:"address"`
	OldValue      string     `json:"oldValue"`
	NewValue      string     `json:"newValue"`
	SleepTime     float64    `json:"sleepTime"`
	Cycles        uint64     `json:"cycles"`
	PC            uint32     `json:"PC"`
	Name          string     `json:"name"`
	Result        Outcome    `json:"result"`
	CacheInfo     *CacheInfo `json:"cacheInfo"`
}

// AddInjectionInfo fills in the fields only known once the injection
// has actually run (sleep duration, elapsed cycles, PC at the moment of
// interruption).
func (l *InjectionLog) AddInjectionInfo(sleepTime float64, cycles uint64, pc uint32) {
	l.SleepTime = sleepTime
	l.Cycles = cycles
	l.PC = pc
}

// AddResult attaches the classified run outcome. Must be called before
// the log is handed to internal/eventlog for publication.
func (l *InjectionLog) AddResult(o Outcome) {
	l.Result = o
}

// injectionLogWire mirrors InjectionLog but with Result as a
// json.RawMessage so MarshalJSON/UnmarshalJSON can dispatch through the
// Outcome interface.
type injectionLogWire struct {
	InjectionTime string          `json:"timestamp"`
	Number        int             `json:"number"`
	Section       string          `json:"section"`
	Address       string          `json:"address"`
	OldValue      string          `json:"oldValue"`
	NewValue      string          `json:"newValue"`
	SleepTime     float64         `json:"sleepTime"`
	Cycles        uint64          `json:"cycles"`
	PC            uint32          `json:"PC"`
	Name          string          `json:"name"`
	Result        json.RawMessage `json:"result"`
	CacheInfo     *CacheInfo      `json:"cacheInfo"`
}

// MarshalJSON serializes the log, matching the original's getDict()
// field set exactly.
func (l InjectionLog) MarshalJSON() ([]byte, error) {
	resultJSON, err := json.Marshal(l.Result)
	if err != nil {
		return nil, err
	}
	w := injectionLogWire{
		InjectionTime: l.InjectionTime,
		Number:        l.Number,
		Section:       l.Section,
		Address:       l.Address,
		OldValue:      l.OldValue,
		NewValue:      l.NewValue,
		SleepTime:     l.SleepTime,
		Cycles:        l.Cycles,
		PC:            l.PC,
		Name:          l.Name,
		Result:        resultJSON,
		CacheInfo:     l.CacheInfo,
	}
	return json.Marshal(w)
}

// UnmarshalJSON deserializes a log, dispatching Result through
// UnmarshalOutcomeDict by its discriminator keys (matching
// InjectionLog.FromDict in the original).
func (l *InjectionLog) UnmarshalJSON(data []byte) error {
	var w injectionLogWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	outcome, err := UnmarshalOutcomeDict(w.Result)
	if err != nil {
		return err
	}
	l.InjectionTime = w.InjectionTime
	l.Number = w.Number
	l.Section = w.Section
	l.Address = w.Address
	l.OldValue = w.OldValue
	l.NewValue = w.NewValue
	l.SleepTime = w.SleepTime
	l.Cycles = w.Cycles
	l.PC = w.PC
	l.Name = w.Name
	l.Result = outcome
	l.CacheInfo = w.CacheInfo
	return nil
}

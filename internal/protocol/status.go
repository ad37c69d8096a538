package protocol

import (
	"fmt"
	"time"
)

// ServerStatus is the decoded driver status() array.
type ServerStatus struct {
	Version             string
	StartTime           time.Time
	BootTime            time.Time
	Uptime              time.Duration
	SwapSize            int
	SwapUsed            int
	SectorSize          int
	SwapRate1           int
	SwapRate5           int
	StaticMemorySize    int
	StaticMemoryUsed    int
	DynamicMemorySize   int
	DynamicMemoryUsed   int
	ObjectTableSize     int
	NumberOfObjects     int
	CallOutTableSize    int
	ShortTermCallOuts   int
	LongTermCallOuts    int
	UserTableSize       int
	EditorTableSize     int
	MaxStringSize       int
	MaxArraySize        int
	RemainingStackDepth int
	RemainingTicks      int
	PrecompiledObjects  []any
	TelnetPorts         []any
	BinaryPorts         []any
}

// statusFieldCount is the length of the status() array.
const statusFieldCount = 27

// StatusField is one labelled line of a status report.
type StatusField struct {
	Label string
	Value string
}

// DecodeServerStatus maps the ordered status() array onto ServerStatus.
func DecodeServerStatus(value any) (*ServerStatus, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("status must be an array, got %T", value)
	}
	if len(items) < statusFieldCount {
		return nil, fmt.Errorf("status has %d fields, expected %d", len(items), statusFieldCount)
	}

	var firstErr error
	num := func(i int) int {
		switch v := items[i].(type) {
		case int:
			return v
		case float64:
			return int(v)
		case nil:
			return 0
		}
		if firstErr == nil {
			firstErr = fmt.Errorf("status field %d is %T, expected a number", i, items[i])
		}
		return 0
	}
	list := func(i int) []any {
		if l, ok := items[i].([]any); ok {
			return l
		}
		return nil
	}

	s := &ServerStatus{
		StartTime:           time.Unix(int64(num(1)), 0),
		BootTime:            time.Unix(int64(num(2)), 0),
		Uptime:              time.Duration(num(3)) * time.Second,
		SwapSize:            num(4),
		SwapUsed:            num(5),
		SectorSize:          num(6),
		SwapRate1:           num(7),
		SwapRate5:           num(8),
		StaticMemorySize:    num(9),
		StaticMemoryUsed:    num(10),
		DynamicMemorySize:   num(11),
		DynamicMemoryUsed:   num(12),
		ObjectTableSize:     num(13),
		NumberOfObjects:     num(14),
		CallOutTableSize:    num(15),
		ShortTermCallOuts:   num(16),
		LongTermCallOuts:    num(17),
		UserTableSize:       num(18),
		EditorTableSize:     num(19),
		MaxStringSize:       num(20),
		MaxArraySize:        num(21),
		RemainingStackDepth: num(22),
		RemainingTicks:      num(23),
		PrecompiledObjects:  list(24),
		TelnetPorts:         list(25),
		BinaryPorts:         list(26),
	}
	if v, ok := items[0].(string); ok {
		s.Version = v
	} else {
		s.Version = fmt.Sprint(items[0])
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return s, nil
}

// Fields returns the report lines in driver order.
func (s *ServerStatus) Fields() []StatusField {
	n := func(v int) string { return groupThousands(v) }
	return []StatusField{
		{"Version", s.Version},
		{"Start time", s.StartTime.Format("02-Jan-2006 15:04:05")},
		{"Boot time", s.BootTime.Format("02-Jan-2006 15:04:05")},
		{"Uptime", formatHMS(s.Uptime)},
		{"Swap size", n(s.SwapSize)},
		{"Swap used", n(s.SwapUsed)},
		{"Sector size", n(s.SectorSize)},
		{"Swap rate 1", n(s.SwapRate1)},
		{"Swap rate 5", n(s.SwapRate5)},
		{"Static memory size", n(s.StaticMemorySize)},
		{"Static memory used", n(s.StaticMemoryUsed)},
		{"Dynamic memory size", n(s.DynamicMemorySize)},
		{"Dynamic memory used", n(s.DynamicMemoryUsed)},
		{"Object table size", n(s.ObjectTableSize)},
		{"Number of objects", n(s.NumberOfObjects)},
		{"Call out table size", n(s.CallOutTableSize)},
		{"Short term call outs", n(s.ShortTermCallOuts)},
		{"Long term call outs", n(s.LongTermCallOuts)},
		{"User table size", n(s.UserTableSize)},
		{"Editor table size", n(s.EditorTableSize)},
		{"Max string size", n(s.MaxStringSize)},
		{"Max array size", n(s.MaxArraySize)},
		{"Remaining stack depth", n(s.RemainingStackDepth)},
		{"Remaining ticks", n(s.RemainingTicks)},
		{"Precompiled objects", fmt.Sprint(s.PrecompiledObjects)},
		{"Telnet ports", fmt.Sprint(s.TelnetPorts)},
		{"Binary ports", fmt.Sprint(s.BinaryPorts)},
	}
}

func formatHMS(d time.Duration) string {
	secs := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}

func groupThousands(v int) string {
	s := fmt.Sprint(v)
	neg := v < 0
	if neg {
		s = s[1:]
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}

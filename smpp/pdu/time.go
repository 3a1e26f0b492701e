package pdu

import (
	"fmt"
	"time"
)

// receiptDateLayout is the YYMMDDhhmm form used in delivery receipt
// submit/done dates.
const receiptDateLayout = "0601021504"

// FormatReceiptDate renders t in the YYMMDDhhmm receipt form, in UTC.
func FormatReceiptDate(t time.Time) string {
	return t.UTC().Format(receiptDateLayout)
}

// ParseTime parses the 16-character SMPP time string YYMMDDhhmmsstnnp.
// With p of '+' or '-' the string is an absolute timestamp whose nn field
// is a UTC offset in quarter hours; with p of 'R' it is an offset relative
// to now. Tenths of a second are ignored. The empty string and strings of
// any other shape return ErrUnparseableTime.
func ParseTime(s string, now time.Time) (time.Time, error) {
	if len(s) != 16 {
		return time.Time{}, fmt.Errorf("%w: %q is not 16 characters", ErrUnparseableTime, s)
	}
	for i := 0; i < 15; i++ {
		if s[i] < '0' || s[i] > '9' {
			return time.Time{}, fmt.Errorf("%w: %q has a non-digit at position %d", ErrUnparseableTime, s, i)
		}
	}

	year := digits2(s[0:2])
	month := digits2(s[2:4])
	day := digits2(s[4:6])
	hour := digits2(s[6:8])
	minute := digits2(s[8:10])
	second := digits2(s[10:12])
	quarters := digits2(s[13:15])

	switch s[15] {
	case 'R':
		d := time.Duration(day)*24*time.Hour +
			time.Duration(hour)*time.Hour +
			time.Duration(minute)*time.Minute +
			time.Duration(second)*time.Second
		return now.AddDate(year, month, 0).Add(d), nil
	case '+', '-':
		offset := time.Duration(quarters) * 15 * time.Minute
		if s[15] == '-' {
			offset = -offset
		}
		local := time.Date(2000+year, time.Month(month), day, hour, minute, second, 0, time.UTC)
		return local.Add(-offset), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q ends with %q, want '+', '-' or 'R'", ErrUnparseableTime, s, s[15])
}

func digits2(s string) int {
	return int(s[0]-'0')*10 + int(s[1]-'0')
}

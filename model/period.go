package model

import (
	"fmt"
	"strconv"
	"strings"
)

// ReportPeriod 标准财务报告期: 03-31, 06-30, 09-30, 12-31
type ReportPeriod struct {
	Year  int
	Month int
}

var quarterEndDay = map[int]int{3: 31, 6: 30, 9: 30, 12: 31}

var dateReplacer = strings.NewReplacer("-", "", ":", "", " ", "", "/", "")

// NormalizeDate 将 YYYY-MM-DD / YYYY-MM-DD HH:MM:SS / YYYYMMDD 统一为 YYYYMMDD
func NormalizeDate(s string) string {
	s = dateReplacer.Replace(strings.TrimSpace(s))
	if len(s) > 8 {
		s = s[:8]
	}
	return s
}

// NormalizeISODate 统一为 YYYY-MM-DD, 无法识别时原样返回
func NormalizeISODate(s string) string {
	d := NormalizeDate(s)
	if len(d) != 8 {
		return strings.TrimSpace(s)
	}
	return d[:4] + "-" + d[4:6] + "-" + d[6:]
}

func ParsePeriod(s string) (ReportPeriod, error) {
	d := NormalizeDate(s)
	if len(d) != 8 {
		return ReportPeriod{}, fmt.Errorf("invalid report period %q", s)
	}
	year, err := strconv.Atoi(d[:4])
	if err != nil {
		return ReportPeriod{}, fmt.Errorf("invalid report period %q: %w", s, err)
	}
	month, err := strconv.Atoi(d[4:6])
	if err != nil {
		return ReportPeriod{}, fmt.Errorf("invalid report period %q: %w", s, err)
	}
	day, err := strconv.Atoi(d[6:])
	if err != nil {
		return ReportPeriod{}, fmt.Errorf("invalid report period %q: %w", s, err)
	}
	if want, ok := quarterEndDay[month]; !ok || want != day {
		return ReportPeriod{}, fmt.Errorf("%q is not a quarter end", s)
	}
	return ReportPeriod{Year: year, Month: month}, nil
}

// MustPeriod 仅用于常量与测试
func MustPeriod(s string) ReportPeriod {
	p, err := ParsePeriod(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p ReportPeriod) String() string {
	return fmt.Sprintf("%04d%02d%02d", p.Year, p.Month, quarterEndDay[p.Month])
}

// MonthDay 返回 MMDD
func (p ReportPeriod) MonthDay() string {
	return p.String()[4:]
}

// Previous 前一个标准报告期
func (p ReportPeriod) Previous() ReportPeriod {
	if p.Month == 3 {
		return ReportPeriod{Year: p.Year - 1, Month: 12}
	}
	return ReportPeriod{Year: p.Year, Month: p.Month - 3}
}

// PriorYearEnd 上年年报期
func (p ReportPeriod) PriorYearEnd() ReportPeriod {
	return ReportPeriod{Year: p.Year - 1, Month: 12}
}

// SameLastYear 上年同期
func (p ReportPeriod) SameLastYear() ReportPeriod {
	return ReportPeriod{Year: p.Year - 1, Month: p.Month}
}

func (p ReportPeriod) Before(q ReportPeriod) bool {
	if p.Year != q.Year {
		return p.Year < q.Year
	}
	return p.Month < q.Month
}

// ConsecutivePeriods 以 end 结尾的连续 n 个报告期, 从新到旧
func ConsecutivePeriods(end ReportPeriod, n int) []ReportPeriod {
	if n <= 0 {
		return nil
	}
	out := make([]ReportPeriod, 0, n)
	cur := end
	for i := 0; i < n; i++ {
		out = append(out, cur)
		cur = cur.Previous()
	}
	return out
}

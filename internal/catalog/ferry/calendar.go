package ferry

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot/internal/catalog"
)

// maxMonthsAhead bounds how far the calendar is paged forward.
const maxMonthsAhead = 12

// now is swapped in tests.
var now = time.Now

// calendar holds the templates of an open date picker.
type calendar struct {
	header  string
	forward string
	date    string
}

func (c calendar) functions() []catalog.Function {
	return []catalog.Function{
		{
			Name:   "selectDate",
			Class:  catalog.ClassAgentFunction,
			Doc:    "Selects a date in the calendar that is already open. month is MMM (e.g. Jan, default NA for the current month); year is YYYY (default 0 for the current year).",
			Params: []string{"date", "month", "year"},
			Handler: func(ctx context.Context, env catalog.Env, args []any) (any, error) {
				day, err := catalog.IntArg(args, 0, "date", 0)
				if err != nil {
					return nil, err
				}
				month, err := catalog.OptionalString(args, 1, "month", "NA")
				if err != nil {
					return nil, err
				}
				year, err := catalog.IntArg(args, 2, "year", 0)
				if err != nil {
					return nil, err
				}
				return nil, c.selectDate(ctx, env, day, month, year)
			},
		},
		{
			Name:   "selectDateWhichIsXDaysFromToday",
			Class:  catalog.ClassAgentFunction,
			Doc:    "Selects the date that is days from today (default 0, today) in the calendar that is already open.",
			Params: []string{"days"},
			Handler: func(ctx context.Context, env catalog.Env, args []any) (any, error) {
				days, err := catalog.IntArg(args, 0, "days", 0)
				if err != nil {
					return nil, err
				}
				target := now().AddDate(0, 0, days)
				return nil, c.selectDate(ctx, env, target.Day(), target.Format("Jan"), target.Year())
			},
		},
	}
}

func (c calendar) selectDate(ctx context.Context, env catalog.Env, day int, month string, year int) error {
	if day < 1 || day > 31 {
		return fmt.Errorf("date %d is not a day of the month", day)
	}
	if m := strings.TrimSpace(month); m == "" || strings.EqualFold(m, "NA") {
		month = now().Format("Jan")
	}
	if len(month) < 3 {
		return fmt.Errorf("month %q must be at least three letters", month)
	}
	if year == 0 {
		year = now().Year()
	}
	if env.DryRun() {
		return nil
	}

	header, err := env.Locate(ctx, c.header, "", 0)
	if err != nil {
		return err
	}
	shownMonth, shownYear, err := readHeader(ctx, env, header)
	if err != nil {
		return err
	}
	for pages := 0; shownYear != year || !sameMonth(shownMonth, month); pages++ {
		if pages >= maxMonthsAhead {
			env.Logger().Warn("Target month not reached in the calendar",
				zap.String("month", month), zap.Int("year", year),
				zap.String("shown", shownMonth+" "+strconv.Itoa(shownYear)))
			break
		}
		forward, err := env.Locate(ctx, c.forward, "", 0)
		if err != nil {
			return err
		}
		if err := env.Driver().Click(ctx, forward); err != nil {
			return err
		}
		if shownMonth, shownYear, err = readHeader(ctx, env, header); err != nil {
			return err
		}
	}

	target, err := env.Locate(ctx, c.date, strconv.Itoa(day), 1)
	if err != nil {
		return err
	}
	return env.Driver().Click(ctx, target)
}

// readHeader parses a "Month YYYY" calendar header.
func readHeader(ctx context.Context, env catalog.Env, xpath string) (string, int, error) {
	texts, err := env.Driver().Texts(ctx, xpath)
	if err != nil {
		return "", 0, err
	}
	if len(texts) == 0 {
		return "", 0, fmt.Errorf("calendar header %s is empty", xpath)
	}
	fields := strings.Fields(texts[0])
	if len(fields) < 2 {
		return "", 0, fmt.Errorf("calendar header %q is not \"Month YYYY\"", texts[0])
	}
	year, err := strconv.Atoi(fields[1])
	if err != nil {
		return "", 0, fmt.Errorf("calendar header %q has no year: %w", texts[0], err)
	}
	return fields[0], year, nil
}

func sameMonth(a, b string) bool {
	return len(a) >= 3 && len(b) >= 3 && strings.EqualFold(a[:3], b[:3])
}

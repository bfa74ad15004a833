package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"storecast/internal/calendar"
	"storecast/internal/frame"
)

// MaxRangeDays bounds a single TagRange request.
const MaxRangeDays = 3660

const dateLayout = "2006-01-02"

// CalendarService tags dates remotely with a calendar.Builder.
type CalendarService struct {
	builder *calendar.Builder
	log     *slog.Logger
}

var _ CalendarServer = (*CalendarService)(nil)

// NewCalendarService creates a CalendarService backed by b.
func NewCalendarService(b *calendar.Builder, log *slog.Logger) *CalendarService {
	if log == nil {
		log = slog.Default()
	}
	return &CalendarService{builder: b, log: log.With("component", "calendar-service")}
}

// RegisterGRPC registers the service on the given gRPC server instance.
func (s *CalendarService) RegisterGRPC(gs *grpc.Server) {
	RegisterCalendarServer(gs, s)
}

// Tag returns every calendar feature of req["date"].
func (s *CalendarService) Tag(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	d, err := dateField(req, "date")
	if err != nil {
		return nil, err
	}
	out, err := TagsToStruct(s.builder.Tag(d))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding tags: %v", err)
	}
	return out, nil
}

// TagRange streams the tags of every date in [req["from"], req["to"]].
func (s *CalendarService) TagRange(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	return s.eachTag(stream.Context(), req, stream.Send)
}

// eachTag validates a from/to request and passes the tags of each date in
// the range to fn, in date order.
func (s *CalendarService) eachTag(ctx context.Context, req *structpb.Struct, fn func(*structpb.Struct) error) error {
	from, err := dateField(req, "from")
	if err != nil {
		return err
	}
	to, err := dateField(req, "to")
	if err != nil {
		return err
	}
	if to.Before(from) {
		return status.Errorf(codes.InvalidArgument, "to %s before from %s", to.Format(dateLayout), from.Format(dateLayout))
	}
	if days := int(to.Sub(from).Hours()/24) + 1; days > MaxRangeDays {
		return status.Errorf(codes.InvalidArgument, "range of %d days exceeds %d", days, MaxRangeDays)
	}

	sent := 0
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return status.FromContextError(err).Err()
		}
		msg, err := TagsToStruct(s.builder.Tag(d))
		if err != nil {
			return status.Errorf(codes.Internal, "encoding tags: %v", err)
		}
		if err := fn(msg); err != nil {
			return err
		}
		sent++
	}
	s.log.Debug("tagged range", "from", from.Format(dateLayout), "to", to.Format(dateLayout), "dates", sent)
	return nil
}

// dateField reads a YYYY-MM-DD string field, reporting codes.InvalidArgument
// when it is absent or malformed.
func dateField(req *structpb.Struct, name string) (time.Time, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return time.Time{}, status.Errorf(codes.InvalidArgument, "missing %q", name)
	}
	d, err := time.Parse(dateLayout, v.GetStringValue())
	if err != nil {
		return time.Time{}, status.Errorf(codes.InvalidArgument, "%s: %v", name, err)
	}
	return d, nil
}

// ---------------------------------------------------------------------------
// Wire encoding
// ---------------------------------------------------------------------------

// TagsToStruct encodes tags under the calendar column names plus "date".
func TagsToStruct(t calendar.Tags) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"date":                        t.Date.Format(dateLayout),
		calendar.ColDayOfWeek:         t.DayOfWeek,
		calendar.ColWeekOfYear:        t.WeekOfYear,
		calendar.ColMonth:             t.Month,
		calendar.ColIsWeekend:         t.IsWeekend,
		calendar.ColIsStartOfMonth:    t.IsStartOfMonth,
		calendar.ColIsEndOfMonth:      t.IsEndOfMonth,
		calendar.ColIsRamadan:         t.IsRamadan,
		calendar.ColIsEidFitr:         t.IsEidFitr,
		calendar.ColIsEidAdha:         t.IsEidAdha,
		calendar.ColIsGreatLent:       t.IsGreatLent,
		calendar.ColIsAdventFast:      t.IsAdventFast,
		calendar.ColIsExamPeriod:      t.IsExamPeriod,
		calendar.ColIsNationalHoliday: t.IsNationalHoliday,
		calendar.ColSeason:            t.Season,
		calendar.ColRetailEvent:       t.RetailEvent,
	})
}

// TagsFromStruct decodes a document produced by TagsToStruct.
func TagsFromStruct(s *structpb.Struct) (calendar.Tags, error) {
	f := s.GetFields()
	d, err := frame.ParseDate(f["date"].GetStringValue())
	if err != nil {
		return calendar.Tags{}, fmt.Errorf("date: %w", err)
	}
	b := func(name string) bool { return f[name].GetBoolValue() }
	return calendar.Tags{
		Date:              d,
		DayOfWeek:         f[calendar.ColDayOfWeek].GetStringValue(),
		WeekOfYear:        int(f[calendar.ColWeekOfYear].GetNumberValue()),
		Month:             int(f[calendar.ColMonth].GetNumberValue()),
		IsWeekend:         b(calendar.ColIsWeekend),
		IsStartOfMonth:    b(calendar.ColIsStartOfMonth),
		IsEndOfMonth:      b(calendar.ColIsEndOfMonth),
		IsRamadan:         b(calendar.ColIsRamadan),
		IsEidFitr:         b(calendar.ColIsEidFitr),
		IsEidAdha:         b(calendar.ColIsEidAdha),
		IsGreatLent:       b(calendar.ColIsGreatLent),
		IsAdventFast:      b(calendar.ColIsAdventFast),
		IsExamPeriod:      b(calendar.ColIsExamPeriod),
		IsNationalHoliday: b(calendar.ColIsNationalHoliday),
		Season:            f[calendar.ColSeason].GetStringValue(),
		RetailEvent:       f[calendar.ColRetailEvent].GetStringValue(),
	}, nil
}

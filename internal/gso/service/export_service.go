package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jekmagalaman/gso/internal/config"
	"github.com/jekmagalaman/gso/internal/gso/entity"
	"github.com/jekmagalaman/gso/internal/gso/repository"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Fixed layout of the exported sheets.
const (
	ipmtSheet        = "IPMT"
	ipmtFirstDataRow = 13
	warSheet         = "WAR"
	warFirstDataRow  = 11
	footerRows       = 3

	ipmtNote = "(*Based on the IPCR Major Final Output (MFO)/ Program, Activity and Project (PAP), " +
		"select only those success indicators where the accomplishments for the period are aligned to*)"
)

// ExportService renders WAR and IPMT spreadsheets.
type ExportService struct {
	userRepo     *repository.UserRepository
	unitRepo     *repository.UnitRepository
	feedbackRepo *repository.FeedbackRepository
	wars         *WARService
	ipmt         *IPMTService
	cfg          config.ReportConfig
}

func NewExportService(repos *repository.Repositories, wars *WARService, ipmt *IPMTService, cfg config.ReportConfig) *ExportService {
	return &ExportService{
		userRepo:     repos.User,
		unitRepo:     repos.Unit,
		feedbackRepo: repos.Feedback,
		wars:         wars,
		ipmt:         ipmt,
		cfg:          cfg,
	}
}

// ExportIPMT renders the saved IPMT entries of one person for a month.
func (s *ExportService) ExportIPMT(ctx context.Context, actor Actor, unitID, personnel string, year, month int) (*excelize.File, string, error) {
	person, entries, err := s.ipmt.Entries(ctx, actor, unitID, personnel, year, month)
	if err != nil {
		return nil, "", err
	}
	unit, err := s.unitRepo.FindByID(ctx, unitID)
	if err != nil {
		return nil, "", lookupErr(err, "unit", unitID)
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", ipmtSheet); err != nil {
		f.Close()
		return nil, "", fmt.Errorf("prepare sheet: %w", err)
	}
	st, err := newSheetStyles(f)
	if err != nil {
		f.Close()
		return nil, "", err
	}

	name := titleCase(person.FullName())
	status := person.EmploymentStatus
	if status == "" {
		status = s.cfg.EmploymentStatus
	}
	period := fmt.Sprintf("%s %d", time.Month(month), year)

	sw := &sheetWriter{f: f, sheet: ipmtSheet}
	set := sw.set
	set("A1", "INDIVIDUAL PERFORMANCE MONITORING TABLE")
	sw.merge("A1", "D1")
	sw.style("A1", "D1", st.title)
	for i, label := range []string{"Unit:", "Name:", "Employment Status:", "Position:", "Month:"} {
		set(fmt.Sprintf("A%d", 7+i), label)
	}
	set("B7", unit.Name)
	set("B8", name)
	set("B9", status)
	set("B10", person.Position)
	set("B11", period)

	set("A12", "Success Indicator")
	set("B12", "Actual Accomplishment")
	set("C12", "Remarks")
	sw.merge("C12", "D12")
	sw.style("A12", "D12", st.header)

	row := ipmtFirstDataRow
	for _, e := range entries {
		code := ""
		if e.Indicator != nil {
			code = e.Indicator.Code
		}
		set(fmt.Sprintf("A%d", row), code)
		set(fmt.Sprintf("B%d", row), strings.TrimSpace(e.Accomplishment))
		set(fmt.Sprintf("C%d", row), strings.TrimSpace(e.Remarks))
		sw.merge(fmt.Sprintf("C%d", row), fmt.Sprintf("D%d", row))
		sw.style(fmt.Sprintf("A%d", row), fmt.Sprintf("D%d", row), st.cell)
		row++
	}

	set(fmt.Sprintf("A%d", row), ipmtNote)
	sw.merge(fmt.Sprintf("A%d", row), fmt.Sprintf("D%d", row))
	sw.style(fmt.Sprintf("A%d", row), fmt.Sprintf("D%d", row), st.note)
	sw.rowHeight(row, 40)

	checker := s.firstUser(ctx, entity.RoleDirector, "")
	checkerName := "Director Name"
	if checker != nil {
		checkerName = titleCase(checker.FullName())
	}
	prepared := []string{"Prepared by:", name, "Employee"}
	checked := []string{"Checked and Verified by:", checkerName, "(Department Head / Supervisor)"}
	footer := row + 1
	for i := 0; i < footerRows; i++ {
		r := footer + i
		set(fmt.Sprintf("A%d", r), prepared[i])
		set(fmt.Sprintf("C%d", r), checked[i])
		sw.merge(fmt.Sprintf("C%d", r), fmt.Sprintf("D%d", r))
		style := st.center
		if i == 1 {
			style = st.signature
		}
		sw.style(fmt.Sprintf("A%d", r), fmt.Sprintf("D%d", r), style)
	}

	for col, w := range map[string]float64{"A": 28, "B": 60, "C": 14, "D": 14} {
		sw.colWidth(col, w)
	}

	if sw.err != nil {
		f.Close()
		return nil, "", fmt.Errorf("write ipmt sheet: %w", sw.err)
	}
	filename := fmt.Sprintf("IPMT_%s_%04d-%02d.xlsx", strings.ReplaceAll(name, " ", "_"), year, month)
	return f, filename, nil
}

// ExportWAR renders the WARs of a unit for a month.
func (s *ExportService) ExportWAR(ctx context.Context, actor Actor, filter WARFilter) (*excelize.File, string, error) {
	if filter.Year == 0 || filter.Month == 0 {
		return nil, "", validationErr("month", "year and month are required")
	}
	wars, err := s.wars.List(ctx, actor, filter)
	if err != nil {
		return nil, "", err
	}

	unitID := filter.UnitID
	if !isOverseer(actor) {
		unitID = actor.UnitID
	}
	unitLabel := "UNASSIGNED"
	var unit *entity.Unit
	if unitID != "" {
		unit, err = s.unitRepo.FindByID(ctx, unitID)
		if err != nil {
			return nil, "", lookupErr(err, "unit", unitID)
		}
		unitLabel = cases.Upper(language.English).String(unit.Name)
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", warSheet); err != nil {
		f.Close()
		return nil, "", fmt.Errorf("prepare sheet: %w", err)
	}
	st, err := newSheetStyles(f)
	if err != nil {
		f.Close()
		return nil, "", err
	}
	sw := &sheetWriter{f: f, sheet: warSheet}
	set := sw.set

	set("A1", "WORK ACCOMPLISHMENT REPORT")
	sw.merge("A1", "H1")
	sw.style("A1", "H1", st.title)

	set("A7", monthRange(filter.Year, filter.Month))
	sw.merge("A7", "H7")
	sw.style("A7", "H7", st.center)
	set("A9", unitLabel)
	sw.merge("A9", "H9")
	sw.style("A9", "H9", st.center)

	headers := []string{"Date Started", "Date Completed", "Activity", "Description", "Requesting Office", "Assigned Personnel", "Status", "Rating"}
	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		set(fmt.Sprintf("%s10", col), h)
	}
	sw.style("A10", "H10", st.header)

	row := warFirstDataRow
	for i := range wars {
		w := &wars[i]
		set(fmt.Sprintf("A%d", row), w.DateStarted.Format("2006-01-02"))
		completed := ""
		if !w.DateCompleted.IsZero() {
			completed = w.DateCompleted.Format("2006-01-02")
		}
		set(fmt.Sprintf("B%d", row), completed)
		set(fmt.Sprintf("C%d", row), w.ActivityName)
		set(fmt.Sprintf("D%d", row), w.Description)
		set(fmt.Sprintf("E%d", row), w.RequestingOfficeName)
		set(fmt.Sprintf("F%d", row), strings.Join(w.PersonnelNames, ", "))
		set(fmt.Sprintf("G%d", row), w.Status)
		set(fmt.Sprintf("H%d", row), s.rating(ctx, w.RequestID))
		sw.style(fmt.Sprintf("A%d", row), fmt.Sprintf("H%d", row), st.cell)
		row++
	}

	sign := row + 2
	preparedBy := "Prepared by:\n" + s.signatory(ctx, actor.UserID)
	checkedBy := "Checked by:\nUnit Head\nPosition"
	if unit != nil {
		if head := s.firstUser(ctx, entity.RoleUnitHead, unit.ID); head != nil {
			checkedBy = "Checked by:\n" + head.FullName() + "\nHead, " + unit.Name
		}
	}
	notedBy := "Noted by:\n" + s.cfg.NotedBy + "\n" + s.cfg.NotedByTitle

	last := sign + footerRows - 1
	for _, block := range []struct {
		from, to string
		text     string
	}{
		{"A", "C", preparedBy},
		{"D", "F", checkedBy},
		{"G", "H", notedBy},
	} {
		set(fmt.Sprintf("%s%d", block.from, sign), block.text)
		sw.merge(fmt.Sprintf("%s%d", block.from, sign), fmt.Sprintf("%s%d", block.to, last))
		sw.style(fmt.Sprintf("%s%d", block.from, sign), fmt.Sprintf("%s%d", block.to, last), st.center)
	}

	for i, w := range []float64{14, 14, 28, 48, 24, 28, 14, 10} {
		col, _ := excelize.ColumnNumberToName(i + 1)
		sw.colWidth(col, w)
	}

	if sw.err != nil {
		f.Close()
		return nil, "", fmt.Errorf("write war sheet: %w", sw.err)
	}
	filename := fmt.Sprintf("WAR_%04d-%02d.xlsx", filter.Year, filter.Month)
	if unit != nil {
		filename = fmt.Sprintf("WAR_%s_%04d-%02d.xlsx", strings.ReplaceAll(unit.Name, " ", "_"), filter.Year, filter.Month)
	}
	return f, filename, nil
}

func (s *ExportService) rating(ctx context.Context, requestID string) string {
	fb, err := s.feedbackRepo.FindByRequestID(ctx, requestID)
	if err != nil || fb.AverageScore == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *fb.AverageScore)
}

func (s *ExportService) signatory(ctx context.Context, userID string) string {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return "\n"
	}
	return u.FullName() + "\n" + u.Position
}

func (s *ExportService) firstUser(ctx context.Context, role entity.Role, unitID string) *entity.User {
	users, err := s.userRepo.List(ctx, repository.UserQuery{Role: role, UnitID: unitID})
	if err != nil || len(users) == 0 {
		return nil
	}
	return &users[0]
}

// titleCase capitalizes each word of s.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

// monthRange formats "March 1 - March 31, 2026".
func monthRange(year, month int) string {
	from, to := MonthRange(year, month)
	last := to.AddDate(0, 0, -1)
	return fmt.Sprintf("%s 1 - %s %d, %d", from.Month(), last.Month(), last.Day(), year)
}

type sheetStyles struct {
	title     int
	header    int
	cell      int
	center    int
	note      int
	signature int
}

func newSheetStyles(f *excelize.File) (*sheetStyles, error) {
	thin := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	centered := &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true}

	var st sheetStyles
	var errs []error
	add := func(dst *int, style *excelize.Style) {
		id, err := f.NewStyle(style)
		errs = append(errs, err)
		*dst = id
	}
	add(&st.title, &excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}, Alignment: centered})
	add(&st.header, &excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border:    thin,
		Alignment: centered,
	})
	add(&st.cell, &excelize.Style{Border: thin, Alignment: centered})
	add(&st.center, &excelize.Style{Alignment: centered})
	add(&st.note, &excelize.Style{Font: &excelize.Font{Italic: true}, Alignment: centered})
	add(&st.signature, &excelize.Style{Font: &excelize.Font{Underline: "single"}, Alignment: centered})

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("create styles: %w", err)
	}
	return &st, nil
}

// sheetWriter writes to one sheet and keeps the first excelize error.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	err   error
}

func (w *sheetWriter) keep(err error) {
	if w.err == nil && err != nil {
		w.err = err
	}
}

func (w *sheetWriter) set(cell string, value interface{}) {
	w.keep(w.f.SetCellValue(w.sheet, cell, value))
}

func (w *sheetWriter) merge(from, to string) {
	w.keep(w.f.MergeCell(w.sheet, from, to))
}

func (w *sheetWriter) style(from, to string, styleID int) {
	w.keep(w.f.SetCellStyle(w.sheet, from, to, styleID))
}

func (w *sheetWriter) rowHeight(row int, height float64) {
	w.keep(w.f.SetRowHeight(w.sheet, row, height))
}

func (w *sheetWriter) colWidth(col string, width float64) {
	w.keep(w.f.SetColWidth(w.sheet, col, col, width))
}

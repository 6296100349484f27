package main

import (
	"context"
	"image"
	"image/color"
	"log"
	"os"
	"time"

	"gioui.org/app"
	"gioui.org/f32"
	"gioui.org/font/gofont"
	"gioui.org/io/event"
	"gioui.org/io/pointer"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/text"
	"gioui.org/unit"
	"gioui.org/widget"
	"gioui.org/widget/material"

	"brainboard/internal/config"
	"brainboard/internal/db"
	"brainboard/pkg/board"
	"brainboard/pkg/cache"
	"brainboard/pkg/sync"
	"brainboard/pkg/task"
	"brainboard/pkg/timegrid"
)

var theme *material.Theme

// dragThreshold is how far the pointer must travel from the press before a
// card is picked up rather than clicked, in pixels.
const dragThreshold = 6

// cardRect is one card's screen footprint for the current frame. grip is the
// resize handle at the card's bottom edge.
type cardRect struct {
	id    string
	rect  image.Rectangle
	grip  image.Rectangle
	timed bool
}

type UI struct {
	win   *app.Window
	store *task.Store
	ctrl  *board.Controller
	week  *board.WeekWindow

	// Header widgets
	prevBtn    widget.Clickable
	nextBtn    widget.Clickable
	todayBtn   widget.Clickable
	taskEditor widget.Editor
	addBtn     widget.Clickable

	// Per-frame board geometry, rebuilt on every layout pass.
	brainRect image.Rectangle
	gridRect  image.Rectangle
	dayW      float64
	slotH     float64
	headerH   int
	cards     []cardRect

	// Gesture state
	pressID  string
	pressPos f32.Point
	dragPos  f32.Point
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load(os.Getenv("BRAINBOARD_CONFIG"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	theme = material.NewTheme()
	theme.Shaper = text.NewShaper(text.WithCollection(gofont.Collection()))
	theme.Palette.Bg = color.NRGBA{R: 0x16, G: 0x16, B: 0x1A, A: 0xFF}
	theme.Palette.Fg = color.NRGBA{R: 0xE0, G: 0xE0, B: 0xE0, A: 0xFF}
	theme.Palette.ContrastBg = color.NRGBA{R: 0x30, G: 0x60, B: 0xA0, A: 0xFF}
	theme.Palette.ContrastFg = color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}

	store := task.NewStore()
	slot := cache.NewFile(cfg.CachePath)

	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("connect: %v", err)
		}
		defer pool.Close()
		engine := sync.New(store, sync.NewPgRemote(pool),
			sync.WithCache(slot), sync.WithSeed(starterTasks()))
		engine.Start(ctx)
		defer engine.Stop()
	} else {
		log.Printf("board: no database configured, running local-only")
		if cached, err := slot.Load(); err != nil {
			log.Printf("board: load cache: %v", err)
		} else if len(cached) > 0 {
			store.Replace(cached, task.OriginRemote)
		} else {
			store.Replace(starterTasks(), task.OriginRemote)
		}
		changes := store.Subscribe()
		go func() {
			for range changes {
				if err := slot.Save(store.All()); err != nil {
					log.Printf("board: save cache: %v", err)
				}
			}
		}()
	}

	ui := &UI{
		store: store,
		ctrl:  board.NewController(store),
		week:  board.NewWeekWindow(time.Now()),
	}
	ui.taskEditor.SingleLine = true
	ui.taskEditor.Submit = true

	// Repaint when the collection changes under us (sync feed, other tabs).
	repaint := store.Subscribe()
	go func() {
		for range repaint {
			if ui.win != nil {
				ui.win.Invalidate()
			}
		}
	}()

	go func() {
		w := new(app.Window)
		w.Option(app.Title("brainboard"))
		w.Option(app.Size(unit.Dp(1280), unit.Dp(860)))
		ui.win = w
		if err := ui.run(w); err != nil {
			log.Fatal(err)
		}
		os.Exit(0)
	}()
	app.Main()
}

func (ui *UI) run(w *app.Window) error {
	var ops op.Ops
	for {
		switch e := w.Event().(type) {
		case app.DestroyEvent:
			return e.Err
		case app.FrameEvent:
			gtx := app.NewContext(&ops, e)
			ui.handleClicks(gtx)
			ui.layout(gtx)
			e.Frame(gtx.Ops)
		}
	}
}

func (ui *UI) handleClicks(gtx layout.Context) {
	if ui.prevBtn.Clicked(gtx) {
		ui.week.Prev()
	}
	if ui.nextBtn.Clicked(gtx) {
		ui.week.Next()
	}
	if ui.todayBtn.Clicked(gtx) {
		ui.week.Today(time.Now())
	}
	submit := ui.addBtn.Clicked(gtx)
	for {
		ev, ok := ui.taskEditor.Update(gtx)
		if !ok {
			break
		}
		if _, isSubmit := ev.(widget.SubmitEvent); isSubmit {
			submit = true
		}
	}
	if submit {
		if title := ui.taskEditor.Text(); title != "" {
			ui.store.Add(task.Task{Title: title})
			ui.taskEditor.SetText("")
		}
	}
}

func (ui *UI) layout(gtx layout.Context) layout.Dimensions {
	paint.Fill(gtx.Ops, theme.Palette.Bg)
	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return layout.UniformInset(unit.Dp(8)).Layout(gtx, ui.layoutHeader)
		}),
		layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			return ui.layoutBoard(gtx)
		}),
	)
}

func (ui *UI) layoutHeader(gtx layout.Context) layout.Dimensions {
	return layout.Flex{Axis: layout.Horizontal, Alignment: layout.Middle}.Layout(gtx,
		layout.Rigid(material.H6(theme, "brainboard").Layout),
		layout.Rigid(layout.Spacer{Width: unit.Dp(24)}.Layout),
		layout.Rigid(material.Button(theme, &ui.prevBtn, "<").Layout),
		layout.Rigid(layout.Spacer{Width: unit.Dp(4)}.Layout),
		layout.Rigid(material.Button(theme, &ui.todayBtn, "Today").Layout),
		layout.Rigid(layout.Spacer{Width: unit.Dp(4)}.Layout),
		layout.Rigid(material.Button(theme, &ui.nextBtn, ">").Layout),
		layout.Rigid(layout.Spacer{Width: unit.Dp(16)}.Layout),
		layout.Rigid(material.Body1(theme, "Week of "+ui.week.Start().Format("Jan 2, 2006")).Layout),
		layout.Rigid(layout.Spacer{Width: unit.Dp(24)}.Layout),
		layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			return material.Editor(theme, &ui.taskEditor, "Brain dump a task...").Layout(gtx)
		}),
		layout.Rigid(layout.Spacer{Width: unit.Dp(8)}.Layout),
		layout.Rigid(material.Button(theme, &ui.addBtn, "Add").Layout),
	)
}

// layoutBoard draws the brain-dump column, the hour gutter and the seven day
// columns, records every card's rectangle for hit testing, and consumes the
// frame's pointer gestures.
func (ui *UI) layoutBoard(gtx layout.Context) layout.Dimensions {
	size := gtx.Constraints.Max
	ui.cards = ui.cards[:0]

	brainW := gtx.Dp(220)
	gutterW := gtx.Dp(44)
	ui.headerH = gtx.Dp(26)
	ui.brainRect = image.Rect(0, 0, brainW, size.Y)
	ui.gridRect = image.Rect(brainW+gutterW, 0, size.X, size.Y)
	ui.dayW = float64(ui.gridRect.Dx()) / timegrid.DaysPerWeek
	ui.slotH = float64(size.Y-ui.headerH) / timegrid.SlotsPerDay

	ui.drawBrainDump(gtx)
	ui.drawGutter(gtx, brainW, gutterW)
	ui.drawGrid(gtx)
	ui.drawDragGhost(gtx)

	// The whole board is one pointer target; card and slot resolution is
	// geometric.
	defer clip.Rect(image.Rectangle{Max: size}).Push(gtx.Ops).Pop()
	event.Op(gtx.Ops, ui)
	ui.handlePointer(gtx)

	return layout.Dimensions{Size: size}
}

func (ui *UI) drawBrainDump(gtx layout.Context) {
	fill(gtx, ui.brainRect, color.NRGBA{R: 0x1E, G: 0x1E, B: 0x24, A: 0xFF})
	labelAt(gtx, image.Pt(ui.brainRect.Min.X+8, 4), ui.brainRect.Dx()-16, "Brain Dump")

	y := ui.headerH + 4
	cardH := gtx.Dp(40)
	for _, t := range ui.store.Unscheduled() {
		r := image.Rect(ui.brainRect.Min.X+6, y, ui.brainRect.Max.X-6, y+cardH)
		if r.Max.Y > ui.brainRect.Max.Y {
			break
		}
		ui.drawCard(gtx, t, r, false)
		y += cardH + 4
	}
}

func (ui *UI) drawGutter(gtx layout.Context, x, w int) {
	for slot := 0; slot < timegrid.SlotsPerDay; slot += timegrid.SlotsPerHour {
		y := ui.headerH + int(float64(slot)*ui.slotH)
		labelAt(gtx, image.Pt(x+4, y), w-8, timegrid.SlotTime(slot))
	}
}

func (ui *UI) drawGrid(gtx layout.Context) {
	line := color.NRGBA{R: 0x2A, G: 0x2A, B: 0x32, A: 0xFF}
	days := timegrid.WeekDays(ui.week.Start())
	today := timegrid.DayID(time.Now())

	for i, dayID := range days {
		x0 := ui.gridRect.Min.X + int(float64(i)*ui.dayW)
		x1 := ui.gridRect.Min.X + int(float64(i+1)*ui.dayW)

		headerBg := color.NRGBA{R: 0x22, G: 0x22, B: 0x2A, A: 0xFF}
		if dayID == today {
			headerBg = theme.Palette.ContrastBg
		}
		fill(gtx, image.Rect(x0, 0, x1, ui.headerH), headerBg)
		day, _ := timegrid.ParseDayID(dayID)
		labelAt(gtx, image.Pt(x0+6, 2), x1-x0-12, day.Format("Mon 2"))

		fill(gtx, image.Rect(x0, ui.headerH, x0+1, ui.gridRect.Max.Y), line)
		for slot := 0; slot <= timegrid.SlotsPerDay; slot += timegrid.SlotsPerHour {
			y := ui.headerH + int(float64(slot)*ui.slotH)
			fill(gtx, image.Rect(x0, y, x1, y+1), line)
		}

		ui.drawDayTasks(gtx, dayID, x0, x1)
	}
}

// drawDayTasks places the day's cards: timed tasks at their slot offset with
// slot-span height, untimed ones stacked under the header.
func (ui *UI) drawDayTasks(gtx layout.Context, dayID string, x0, x1 int) {
	resizingID, preview, isResizing := ui.ctrl.Resizing()
	untimedY := ui.headerH + 2

	for _, t := range ui.store.ByDay(dayID) {
		if t.ScheduledTime == "" {
			h := gtx.Dp(22)
			r := image.Rect(x0+3, untimedY, x1-3, untimedY+h)
			ui.drawCard(gtx, t, r, false)
			untimedY += h + 2
			continue
		}
		slot, err := timegrid.SlotIndex(t.ScheduledTime)
		if err != nil {
			continue
		}
		minutes := t.TimeEstimate
		if isResizing && t.ID == resizingID {
			minutes = preview
		}
		y0 := ui.headerH + int(float64(slot)*ui.slotH)
		y1 := y0 + int(float64(timegrid.SlotSpan(minutes))*ui.slotH)
		ui.drawCard(gtx, t, image.Rect(x0+3, y0, x1-3, y1), true)
	}
}

func (ui *UI) drawCard(gtx layout.Context, t task.Task, r image.Rectangle, timed bool) {
	bg := cardColor(t)
	if dragID, ok := ui.ctrl.Dragging(); ok && dragID == t.ID {
		bg.A = 0x60
	}
	fill(gtx, r, bg)
	labelAt(gtx, image.Pt(r.Min.X+5, r.Min.Y+2), r.Dx()-10, t.Title)

	grip := image.Rectangle{}
	if timed {
		grip = image.Rect(r.Min.X, r.Max.Y-gtx.Dp(6), r.Max.X, r.Max.Y)
		fill(gtx, grip, color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0x28})
	}
	ui.cards = append(ui.cards, cardRect{id: t.ID, rect: r, grip: grip, timed: timed})
}

// drawDragGhost renders the dragged card's title at the pointer.
func (ui *UI) drawDragGhost(gtx layout.Context) {
	id, ok := ui.ctrl.Dragging()
	if !ok {
		return
	}
	t, ok := ui.store.Get(id)
	if !ok {
		return
	}
	at := image.Pt(int(ui.dragPos.X)+8, int(ui.dragPos.Y)+8)
	w := gtx.Dp(160)
	fill(gtx, image.Rectangle{Min: at, Max: at.Add(image.Pt(w, gtx.Dp(22)))}, theme.Palette.ContrastBg)
	labelAt(gtx, at.Add(image.Pt(5, 2)), w-10, t.Title)
}

func (ui *UI) handlePointer(gtx layout.Context) {
	for {
		ev, ok := gtx.Event(pointer.Filter{
			Target: ui,
			Kinds:  pointer.Press | pointer.Drag | pointer.Release | pointer.Cancel,
		})
		if !ok {
			break
		}
		pe, ok := ev.(pointer.Event)
		if !ok {
			continue
		}

		switch pe.Kind {
		case pointer.Press:
			ui.pressID = ""
			if c, ok := ui.cardAt(pe.Position); ok {
				if c.timed && pe.Position.Y >= float32(c.grip.Min.Y) {
					ui.ctrl.BeginResize(c.id, float64(pe.Position.Y), ui.slotH)
				} else {
					ui.pressID = c.id
					ui.pressPos = pe.Position
				}
			}

		case pointer.Drag:
			ui.dragPos = pe.Position
			if _, _, resizing := ui.ctrl.Resizing(); resizing {
				ui.ctrl.ResizeTo(float64(pe.Position.Y))
				break
			}
			if _, dragging := ui.ctrl.Dragging(); !dragging && ui.pressID != "" {
				dx := float64(pe.Position.X - ui.pressPos.X)
				dy := float64(pe.Position.Y - ui.pressPos.Y)
				if dx*dx+dy*dy > dragThreshold*dragThreshold {
					ui.ctrl.BeginDrag(ui.pressID)
				}
			}

		case pointer.Release:
			if _, _, resizing := ui.ctrl.Resizing(); resizing {
				ui.ctrl.EndResize()
				break
			}
			if _, dragging := ui.ctrl.Dragging(); dragging {
				ui.ctrl.Drop(ui.targetAt(pe.Position))
				break
			}
			if ui.pressID != "" && !ui.ctrl.SuppressClick() {
				ui.store.ToggleComplete(ui.pressID)
			}
			ui.pressID = ""

		case pointer.Cancel:
			ui.ctrl.CancelDrag()
			ui.ctrl.CancelResize()
			ui.pressID = ""
		}
	}
}

// cardAt finds the topmost card under the pointer.
func (ui *UI) cardAt(p f32.Point) (cardRect, bool) {
	at := image.Pt(int(p.X), int(p.Y))
	for i := len(ui.cards) - 1; i >= 0; i-- {
		if at.In(ui.cards[i].rect) {
			return ui.cards[i], true
		}
	}
	return cardRect{}, false
}

// targetAt resolves the pointer position to a drop-target id: another card,
// a calendar slot, a day header, or the brain dump.
func (ui *UI) targetAt(p f32.Point) string {
	dragID, _ := ui.ctrl.Dragging()
	if c, ok := ui.cardAt(p); ok && c.id != dragID {
		return c.id
	}

	at := image.Pt(int(p.X), int(p.Y))
	if at.In(ui.brainRect) {
		return timegrid.UnscheduleTarget{}.ID()
	}
	if !at.In(ui.gridRect) {
		return ""
	}

	dayIdx := int(float64(at.X-ui.gridRect.Min.X) / ui.dayW)
	if dayIdx < 0 {
		dayIdx = 0
	}
	if dayIdx >= timegrid.DaysPerWeek {
		dayIdx = timegrid.DaysPerWeek - 1
	}
	if at.Y < ui.headerH {
		return timegrid.DayTarget{Day: timegrid.WeekDays(ui.week.Start())[dayIdx]}.ID()
	}

	slotIdx := int(float64(at.Y-ui.headerH) / ui.slotH)
	if slotIdx < 0 {
		slotIdx = 0
	}
	if slotIdx >= timegrid.SlotsPerDay {
		slotIdx = timegrid.SlotsPerDay - 1
	}
	day, tod := timegrid.CoordinateToTime(ui.week.Start(), dayIdx, slotIdx)
	return timegrid.SlotTarget{Day: day, Time: tod}.ID()
}

// starterTasks is the first-run collection, loaded only when both the remote
// store and the local cache are empty.
func starterTasks() []task.Task {
	return []task.Task{
		{Title: "Drag a task onto the calendar", Description: "Cards snap to 30-minute slots.", TimeEstimate: 30},
		{Title: "Drag the bottom edge to resize", Description: "Duration changes in slot steps.", TimeEstimate: 60},
		{Title: "Click a card to mark it done", TimeEstimate: 30, Priority: task.PriorityLow},
	}
}

func cardColor(t task.Task) color.NRGBA {
	if t.Status == task.StatusCompleted {
		return color.NRGBA{R: 0x2A, G: 0x4A, B: 0x2A, A: 0xFF}
	}
	switch t.Priority {
	case task.PriorityHigh:
		return color.NRGBA{R: 0x7A, G: 0x30, B: 0x30, A: 0xFF}
	case task.PriorityLow:
		return color.NRGBA{R: 0x2E, G: 0x3E, B: 0x52, A: 0xFF}
	default:
		return color.NRGBA{R: 0x3A, G: 0x4A, B: 0x66, A: 0xFF}
	}
}

func fill(gtx layout.Context, r image.Rectangle, c color.NRGBA) {
	paint.FillShape(gtx.Ops, c, clip.Rect(r).Op())
}

// labelAt lays out a single caption at a pixel offset, clipped to the given
// width.
func labelAt(gtx layout.Context, at image.Point, width int, s string) {
	trans := op.Offset(at).Push(gtx.Ops)
	sub := gtx
	sub.Constraints = layout.Exact(image.Pt(width, gtx.Dp(20)))
	sub.Constraints.Min = image.Point{}
	material.Caption(theme, s).Layout(sub)
	trans.Pop()
}

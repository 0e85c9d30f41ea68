package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/metcalfc/bookbrr/internal/config"
	"github.com/metcalfc/bookbrr/internal/logging"
	"github.com/metcalfc/bookbrr/internal/reader"
	"github.com/metcalfc/bookbrr/internal/state"
	"go.uber.org/zap"
)

// Version info (injected via ldflags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const wpmStep = 50

var (
	erpStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF0000"))

	wordBeforeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	wordAfterStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Padding(0, 1)

	chapterStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5FAFFF"))

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA")).
			Italic(true)

	pausedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFAA00")).
			Bold(true)

	completeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)
)

type keyMap struct {
	Pause        key.Binding
	Faster       key.Binding
	Slower       key.Binding
	PrevSentence key.Binding
	NextSentence key.Binding
	PrevChapter  key.Binding
	NextChapter  key.Binding
	Seek         key.Binding
	Bookmark     key.Binding
	Help         key.Binding
	Quit         key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Pause, k.Faster, k.Slower, k.NextSentence, k.NextChapter, k.Bookmark, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Pause, k.Faster, k.Slower},
		{k.PrevSentence, k.NextSentence, k.PrevChapter, k.NextChapter, k.Seek},
		{k.Bookmark, k.Help, k.Quit},
	}
}

var keys = keyMap{
	Pause:        key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "pause/play")),
	Faster:       key.NewBinding(key.WithKeys("+", "=", "up"), key.WithHelp("↑/+", "faster")),
	Slower:       key.NewBinding(key.WithKeys("-", "down"), key.WithHelp("↓/-", "slower")),
	PrevSentence: key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "prev sentence")),
	NextSentence: key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "next sentence")),
	PrevChapter:  key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "prev chapter")),
	NextChapter:  key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next chapter")),
	Seek:         key.NewBinding(key.WithKeys("0", "1", "2", "3", "4", "5", "6", "7", "8", "9"), key.WithHelp("0-9", "jump to 0-90%")),
	Bookmark:     key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "bookmark")),
	Help:         key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
	Quit:         key.NewBinding(key.WithKeys("q", "Q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type model struct {
	*reader.Reader
	store    state.Store
	bookID   string
	logger   *zap.Logger
	keys     keyMap
	help     help.Model
	progress progress.Model
	notice   string
	quitting bool
	width    int
	height   int
}

type tickMsg time.Time

// bookmarkMsg reports the outcome of adding a bookmark.
type bookmarkMsg struct {
	bookmark *state.Bookmark
	err      error
}

var errNoLibrary = errors.New("no library open")

func (m model) Init() tea.Cmd {
	return tick(m.GetDelay())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Pause):
			m.Paused = !m.Paused
			if !m.Paused {
				return m, tick(m.GetDelay())
			}
			return m, nil

		case key.Matches(msg, m.keys.Faster):
			if m.WPM+wpmStep <= config.MaxWPM {
				m.WPM += wpmStep
			}
			return m, nil

		case key.Matches(msg, m.keys.Slower):
			if m.WPM-wpmStep >= config.MinWPM {
				m.WPM -= wpmStep
			}
			return m, nil

		case key.Matches(msg, m.keys.PrevSentence):
			m.pauseForNavigation()
			m.JumpToPrevSentence()
			return m, nil

		case key.Matches(msg, m.keys.NextSentence):
			m.pauseForNavigation()
			m.JumpToNextSentence()
			return m, nil

		case key.Matches(msg, m.keys.PrevChapter):
			m.PrevChapter()
			return m, nil

		case key.Matches(msg, m.keys.NextChapter):
			m.NextChapter()
			return m, nil

		case key.Matches(msg, m.keys.Seek):
			tenth := int(msg.String()[0] - '0')
			m.Seek(state.PercentageToWordIndex(float64(tenth*10), len(m.Words)))
			return m, nil

		case key.Matches(msg, m.keys.Bookmark):
			return m, m.addBookmark()

		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil

		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.progress.Width = max(msg.Width-4, 10)
		return m, nil

	case bookmarkMsg:
		if msg.err != nil {
			m.logger.Warn("failed to add bookmark", zap.Error(msg.err))
			m.notice = "Bookmark failed: " + msg.err.Error()
			return m, nil
		}
		m.notice = "Bookmarked: " + msg.bookmark.Label
		return m, nil

	case tickMsg:
		if m.Paused {
			return m, nil
		}

		if m.Advance() {
			return m, tick(m.GetDelay())
		}

		// Reached the end
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// pauseForNavigation pauses unless the previous arrow press was recent,
// so holding an arrow keeps skipping while playing.
func (m model) pauseForNavigation() {
	now := time.Now()
	if now.Sub(m.LastArrowPress) > 500*time.Millisecond {
		m.Paused = true
	}
	m.LastArrowPress = now
}

func (m model) addBookmark() tea.Cmd {
	if m.store == nil || m.bookID == "" {
		return func() tea.Msg { return bookmarkMsg{err: errNoLibrary} }
	}

	s, bookID, idx := m.store, m.bookID, m.CurrentIndex
	preview := strings.Join(m.Preview(idx, 8), " ")
	label := ""
	if title := m.CurrentChapterTitle(); title != "" {
		label = fmt.Sprintf("%s (word %d)", title, idx)
	}
	return func() tea.Msg {
		bm, err := s.AddBookmark(bookID, idx, label, preview)
		return bookmarkMsg{bookmark: bm, err: err}
	}
}

func (m model) View() string {
	if m.quitting {
		if m.AtEnd() {
			return completeStyle.Render("\n  Reading complete!\n")
		}
		return ""
	}

	if len(m.Words) == 0 {
		return "No text to read."
	}

	word := m.CurrentWord()
	formatted := formatWord(word)

	pause := ""
	if m.Paused {
		pause = pausedStyle.Render(" [PAUSED]")
	}

	current, total := m.Progress()
	status := statusStyle.Render(
		fmt.Sprintf("Word %d/%d | %d%% | %d WPM%s",
			current,
			total,
			state.WordIndexToPercentage(current, total),
			m.WPM,
			pause,
		),
	)

	var header strings.Builder
	if m.Title != "" {
		header.WriteString(m.Title)
	}
	if ch := m.CurrentChapterTitle(); ch != "" {
		if header.Len() > 0 {
			header.WriteString(" · ")
		}
		header.WriteString(chapterStyle.Render(ch))
	}

	bar := m.progress.ViewAs(float64(current) / float64(total))
	controls := m.help.View(m.keys)

	// Reserve lines for header, status, bar, notice and controls
	footer := lipgloss.Height(controls) + 1
	avail := m.height - 3 - footer
	if avail < 1 {
		avail = 1
	}
	vPad := avail / 2

	var sb strings.Builder

	sb.WriteString(statusStyle.Render(header.String()))
	sb.WriteString("\n")
	sb.WriteString(status)
	sb.WriteString("\n")
	sb.WriteString(" " + bar)
	sb.WriteString("\n")

	for i := 0; i < vPad; i++ {
		sb.WriteString("\n")
	}

	sb.WriteString(anchorORPText(formatted, word, m.width))

	for i := 0; i < avail-vPad; i++ {
		sb.WriteString("\n")
	}

	sb.WriteString(noticeStyle.Render(m.notice))
	sb.WriteString("\n")
	sb.WriteString(controls)

	return sb.String()
}

// splitORP splits word around its focus rune.
func splitORP(word string) (before, focus, after string) {
	runes := []rune(word)
	if len(runes) == 0 {
		return "", "", ""
	}
	orp := reader.GetORPPosition(word)
	if orp >= len(runes) {
		orp = len(runes) - 1
	}
	return string(runes[:orp]), string(runes[orp]), string(runes[orp+1:])
}

func formatWord(word string) string {
	before, focus, after := splitORP(word)
	return wordBeforeStyle.Render(before) +
		erpStyle.Render(focus) +
		wordAfterStyle.Render(after)
}

func anchorORPText(text string, word string, width int) string {
	anchor := width / 2
	orp := reader.GetORPPosition(word)
	pad := anchor - orp
	if pad < 0 {
		pad = 0
	}
	return strings.Repeat(" ", pad) + text
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func newModel(res *reader.ParseResult, wpm int) model {
	h := help.New()
	h.Width = 80
	p := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	p.Width = 76
	return model{
		Reader:   reader.NewReaderFromResult(res, wpm),
		logger:   zap.NewNop(),
		keys:     keys,
		help:     h,
		progress: p,
		width:    80,
		height:   24,
	}
}

type options struct {
	wpm        int
	wpmSet     bool
	configPath string
	fresh      bool
	info       bool
	jsonOut    bool
	library    bool
	bookmarks  bool
}

func main() {
	var opts options
	flag.IntVar(&opts.wpm, "w", config.DefaultWPM, "Words per minute (default from config, else 300)")
	flag.StringVar(&opts.configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/brr/config.yaml)")
	flag.BoolVar(&opts.fresh, "fresh", false, "Start from the beginning instead of the saved position")
	flag.BoolVar(&opts.info, "info", false, "Print title, word count and chapters, then exit")
	flag.BoolVar(&opts.jsonOut, "json", false, "Print the extraction result as JSON, then exit")
	flag.BoolVar(&opts.library, "library", false, "List books in the library, then exit")
	flag.BoolVar(&opts.bookmarks, "bookmarks", false, "List bookmarks for the file, then exit")
	showVersion := flag.Bool("v", false, "Show version information")
	showVersionLong := flag.Bool("version", false, "Show version information")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Brr - Terminal Speed Reading Tool\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  brr [options] [file]\n\n")
		fmt.Fprintf(os.Stderr, "Supported formats: %s\n\n", strings.Join(reader.SupportedFormats(), ", "))
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  brr book.epub             Read a book, resuming where you left off\n")
		fmt.Fprintf(os.Stderr, "  brr -w 500 paper.pdf      Read at 500 WPM\n")
		fmt.Fprintf(os.Stderr, "  brr -info novel.fb2       Show chapters\n")
		fmt.Fprintf(os.Stderr, "  cat file.txt | brr        Read from stdin\n")
		fmt.Fprintf(os.Stderr, "\nControls:\n")
		fmt.Fprintf(os.Stderr, "  SPACE    Pause/play\n")
		fmt.Fprintf(os.Stderr, "  +/-      Increase/decrease speed by 50 WPM\n")
		fmt.Fprintf(os.Stderr, "  ↑/↓      Increase/decrease speed by 50 WPM\n")
		fmt.Fprintf(os.Stderr, "  ←/→      Jump to previous/next sentence\n")
		fmt.Fprintf(os.Stderr, "  p/n      Jump to previous/next chapter\n")
		fmt.Fprintf(os.Stderr, "  0-9      Jump to 0%%-90%%\n")
		fmt.Fprintf(os.Stderr, "  b        Bookmark the current word\n")
		fmt.Fprintf(os.Stderr, "  Q        Quit and save position\n")
	}
	flag.Parse()
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "w" {
			opts.wpmSet = true
		}
	})

	if *showVersion || *showVersionLong {
		fmt.Printf("brr %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if err := run(opts, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options, args []string) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.wpmSet {
		cfg.WPM = opts.wpm
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if opts.library {
		return withStore(cfg, logger, func(s state.Store) error {
			return printLibrary(os.Stdout, s)
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	file, path, err := inputFile(args)
	if err != nil {
		return err
	}

	parser := reader.NewParser(reader.ParserConfig{
		Logger:          logger,
		LoadConcurrency: cfg.EPUB.LoadConcurrency,
	})
	res, err := parser.Parse(ctx, file)
	if err != nil {
		return err
	}

	switch {
	case opts.jsonOut:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case opts.info:
		printInfo(os.Stdout, res)
		return nil
	}

	if strings.TrimSpace(res.Text) == "" {
		return errors.New("no text to read")
	}

	return withStore(cfg, logger, func(s state.Store) error {
		book, err := openBook(s, logger, path, res)
		if err != nil {
			return err
		}

		if opts.bookmarks {
			return printBookmarks(os.Stdout, s, book)
		}

		wpm := cfg.WPM
		if !opts.wpmSet && book.Settings.WPM > 0 {
			wpm = book.Settings.WPM
		}

		m := newModel(res, wpm)
		m.store = s
		m.bookID = book.ID
		m.logger = logger
		if !opts.fresh {
			m.Seek(book.CurrentWordIndex)
		}

		final, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
		if fm, ok := final.(model); ok {
			if serr := s.UpdateProgress(book.ID, fm.CurrentIndex, &state.Settings{WPM: fm.WPM}); serr != nil {
				logger.Error("failed to save progress", zap.Error(serr))
			}
		}
		if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return err
		}
		return nil
	})
}

// inputFile returns the named file, or stdin read as plain text.
func inputFile(args []string) (reader.File, string, error) {
	if len(args) > 0 {
		return reader.OpenFile(args[0]), args[0], nil
	}

	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) != 0 {
		return nil, "", errors.New("no input provided, provide a file or pipe text to stdin (try: brr -h)")
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return reader.NewFile("stdin.txt", data), "", nil
}

func withStore(cfg *config.Config, logger *zap.Logger, fn func(state.Store) error) error {
	s, err := state.Open(cfg.Store.Backend, cfg.Store.Path, logger)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

// openBook finds the book in the library or adds it, migrating a position
// from the old per-file positions file when there is one.
func openBook(s state.Store, logger *zap.Logger, path string, res *reader.ParseResult) (*state.Book, error) {
	var hash string
	if path != "" {
		h, err := state.ComputeHash(path)
		if err != nil {
			logger.Warn("failed to hash file", zap.String("path", path), zap.Error(err))
		}
		hash = h
	}

	legacy, err := state.OpenLegacyPositions(config.StateDir())
	if err != nil {
		logger.Warn("ignoring legacy positions", zap.Error(err))
		legacy = nil
	}
	return state.Resume(s, legacy, hash, state.NewBook(res))
}

func printInfo(w io.Writer, res *reader.ParseResult) {
	fmt.Fprintf(w, "Title:    %s\n", res.Title)
	fmt.Fprintf(w, "Words:    %d\n", res.TotalWords())
	fmt.Fprintf(w, "Chapters: %d\n", len(res.Chapters))
	for i, ch := range res.Chapters {
		fmt.Fprintf(w, "  %3d. %-40s word %d (%d words)\n", i+1, ch.Title, ch.WordIndex, ch.WordCount)
	}
	for _, warning := range res.Warnings {
		fmt.Fprintf(w, "Warning:  %s\n", warning)
	}
}

func printLibrary(w io.Writer, s state.Store) error {
	books, err := s.Library()
	if err != nil {
		return err
	}
	if len(books) == 0 {
		fmt.Fprintln(w, "Library is empty.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TITLE\tPROGRESS\tWORDS\tLAST READ")
	for _, b := range books {
		fmt.Fprintf(tw, "%s\t%d%%\t%d\t%s\n", b.Title, b.Progress, b.TotalWords, b.LastRead.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func printBookmarks(w io.Writer, s state.Store, book *state.Book) error {
	marks, err := s.Bookmarks(book.ID)
	if err != nil {
		return err
	}
	if len(marks) == 0 {
		fmt.Fprintf(w, "No bookmarks in %s.\n", book.Title)
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WORD\tLABEL\tPREVIEW")
	for _, bm := range marks {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", bm.WordIndex, bm.Label, bm.Preview)
	}
	return tw.Flush()
}

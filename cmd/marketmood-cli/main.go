package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"marketmood/internal/display"
	"marketmood/internal/domain"
	"marketmood/pkg/marketmood"
)

const version = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: marketmood-cli <command> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  version                Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "  dashboard              Show the server session\n")
		fmt.Fprintf(os.Stderr, "  tickers                List selectable tickers\n")
		fmt.Fprintf(os.Stderr, "  analyze <symbol>       Run a full sentiment analysis\n")
		fmt.Fprintf(os.Stderr, "  runs <symbol>          List recorded analysis runs\n")
		fmt.Fprintf(os.Stderr, "  quote <symbol>         Show the latest quote\n")
		fmt.Fprintf(os.Stderr, "  history <symbol>       Show the price window summary\n")
		fmt.Fprintf(os.Stderr, "  news <symbol>          List recent articles\n")
		fmt.Fprintf(os.Stderr, "  fundamentals <symbol>  Show company metrics\n")
		fmt.Fprintf(os.Stderr, "  mood <symbol>          Show the daily mood trend\n")
		fmt.Fprintf(os.Stderr, "  heatmap                Show sector performance\n")
		fmt.Fprintf(os.Stderr, "  favorites              List favorites\n")
		fmt.Fprintf(os.Stderr, "  favorites add <sym>    Add a favorite\n")
		fmt.Fprintf(os.Stderr, "  favorites remove <sym> Remove a favorite\n")
		fmt.Fprintf(os.Stderr, "  watch                  Stream session events\n")
		fmt.Fprintf(os.Stderr, "\nThe server address comes from -server or MARKETMOOD_SERVER.\n")
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "version":
		fmt.Printf("marketmood-cli %s\n", version)
	case "dashboard":
		err = cmdDashboard(ctx, os.Args[2:])
	case "tickers":
		err = cmdTickers(ctx, os.Args[2:])
	case "analyze":
		err = cmdAnalyze(ctx, os.Args[2:])
	case "runs":
		err = cmdRuns(ctx, os.Args[2:])
	case "quote":
		err = cmdQuote(ctx, os.Args[2:])
	case "history":
		err = cmdHistory(ctx, os.Args[2:])
	case "news":
		err = cmdNews(ctx, os.Args[2:])
	case "fundamentals":
		err = cmdFundamentals(ctx, os.Args[2:])
	case "mood":
		err = cmdMood(ctx, os.Args[2:])
	case "heatmap":
		err = cmdHeatmap(ctx, os.Args[2:])
	case "favorites":
		err = cmdFavorites(ctx, os.Args[2:])
	case "watch":
		err = cmdWatch(ctx, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		flag.Usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// serverFlag registers -server on a subcommand flag set, defaulting to
// MARKETMOOD_SERVER.
func serverFlag(fs *flag.FlagSet) *string {
	def := os.Getenv("MARKETMOOD_SERVER")
	if def == "" {
		def = "http://localhost:8080"
	}
	return fs.String("server", def, "marketmood-server base URL")
}

// symbolArg parses flags and returns the required trailing symbol.
func symbolArg(fs *flag.FlagSet, args []string) (string, error) {
	fs.Parse(args)
	if fs.NArg() < 1 {
		return "", fmt.Errorf("%s: symbol required", fs.Name())
	}
	return fs.Arg(0), nil
}

// opt adapts the SDK's nullable numbers to the display helpers.
func opt(p *float64) domain.Float {
	if p == nil {
		return domain.Float{}
	}
	return domain.FloatFrom(*p)
}

func cmdDashboard(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("dashboard", flag.ExitOnError)
	server := serverFlag(fs)
	fs.Parse(args)

	d, err := marketmood.NewClient(*server).Dashboard(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("ticker:    %s\n", d.Ticker)
	fmt.Printf("window:    %s\n", d.Window)
	fmt.Printf("articles:  %d\n", d.ArticleCount)
	fmt.Printf("favorites: %v\n", d.Favorites)
	if d.Running {
		fmt.Println("analysis:  running")
	}
	if a := d.LastAnalysis; a != nil {
		fmt.Printf("last run:  %s %s (%s)\n",
			a.Symbol, display.MoodBadge(domain.Mood(a.Mood)), a.RanAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func cmdTickers(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tickers", flag.ExitOnError)
	server := serverFlag(fs)
	fs.Parse(args)

	t, err := marketmood.NewClient(*server).Tickers(ctx)
	if err != nil {
		return err
	}
	// One symbol per line so the output pipes into other commands.
	for _, sym := range t.Tickers {
		fmt.Println(sym)
	}
	return nil
}

func cmdAnalyze(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	server := serverFlag(fs)
	window := fs.String("window", "", "price window (1d 5d 1mo 3mo 6mo 1y 2y 5y max)")
	articles := fs.Int("articles", 0, "articles to classify")
	symbol, err := symbolArg(fs, args)
	if err != nil {
		return err
	}

	a, err := marketmood.NewClient(*server).Analyze(ctx, symbol, marketmood.AnalyzeOptions{
		Window:   *window,
		Articles: *articles,
	})
	if err != nil {
		return err
	}

	fmt.Printf("%s  %s  (%s window, ran %s)\n",
		a.Symbol, display.MoodBadge(domain.Mood(a.Mood)), a.Window, a.RanAt.Format("2006-01-02 15:04"))
	fmt.Printf("articles: %d positive, %d negative, %d neutral\n",
		a.Counts.Positive, a.Counts.Negative, a.Counts.Neutral)
	fmt.Printf("price:    %s %s (%s)\n",
		display.FormatPrice(opt(a.Quote.Current)),
		display.FormatChange(opt(a.Quote.Change)),
		display.FormatPct(opt(a.Quote.ChangePct)))
	fmt.Printf("data:     %s\n", display.TierNote(domain.Tier(a.Fundamentals.Tier)))
	if len(a.Results) > 0 {
		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, r := range a.Results {
			fmt.Fprintf(w, "%s\t%.2f\t%s\n",
				display.LabelDot(domain.SentimentLabel(r.Label)), r.Confidence, r.Title)
		}
		w.Flush()
	}
	for _, warn := range a.Warnings {
		fmt.Printf("warning: %s\n", warn)
	}
	return nil
}

func cmdRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	server := serverFlag(fs)
	limit := fs.Int("n", 0, "runs to list")
	symbol, err := symbolArg(fs, args)
	if err != nil {
		return err
	}

	runs, err := marketmood.NewClient(*server).Analyses(ctx, symbol, *limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Printf("%s: no recorded runs\n", symbol)
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d+ %d- %d=\t%d articles\t%s\n",
			r.RanAt.Format("2006-01-02 15:04"),
			r.Window,
			display.MoodBadge(domain.Mood(r.Mood)),
			r.Counts.Positive, r.Counts.Negative, r.Counts.Neutral,
			r.Articles, r.Tier)
	}
	return w.Flush()
}

func cmdQuote(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("quote", flag.ExitOnError)
	server := serverFlag(fs)
	symbol, err := symbolArg(fs, args)
	if err != nil {
		return err
	}

	q, err := marketmood.NewClient(*server).Quote(ctx, symbol)
	if err != nil {
		return err
	}
	if q.Warning != "" {
		fmt.Printf("%s: %s\n", q.Symbol, q.Warning)
		return nil
	}
	fmt.Printf("%s  %s  %s (%s)\n", q.Symbol,
		display.FormatPrice(opt(q.Current)),
		display.FormatChange(opt(q.Change)),
		display.FormatPct(opt(q.ChangePct)))
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "open\t%s\n", display.FormatPrice(opt(q.Open)))
	fmt.Fprintf(w, "high\t%s\n", display.FormatPrice(opt(q.DayHigh)))
	fmt.Fprintf(w, "low\t%s\n", display.FormatPrice(opt(q.DayLow)))
	fmt.Fprintf(w, "prev\t%s\n", display.FormatPrice(opt(q.Previous)))
	w.Flush()
	if q.Source == "bars" {
		fmt.Println("(derived from daily bars; live quote unavailable)")
	}
	return nil
}

func cmdHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	server := serverFlag(fs)
	window := fs.String("window", "", "price window")
	symbol, err := symbolArg(fs, args)
	if err != nil {
		return err
	}

	h, err := marketmood.NewClient(*server).History(ctx, symbol, *window)
	if err != nil {
		return err
	}
	if h.NoData {
		fmt.Printf("%s: no data for this ticker\n", h.Symbol)
		if h.Warning != "" {
			fmt.Printf("warning: %s\n", h.Warning)
		}
		return nil
	}
	first, last := h.Series[0], h.Series[len(h.Series)-1]
	fmt.Printf("%s %s: %d bars, %s to %s\n", h.Symbol, h.Window, len(h.Series),
		first.Date.Format("2006-01-02"), last.Date.Format("2006-01-02"))
	fmt.Printf("close %s to %s, %s (%s)\n",
		display.FormatPrice(domain.FloatFrom(first.Close)),
		display.FormatPrice(domain.FloatFrom(last.Close)),
		display.FormatChange(opt(h.Change)),
		display.FormatPct(opt(h.ChangePct)))
	return nil
}

func cmdNews(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("news", flag.ExitOnError)
	server := serverFlag(fs)
	limit := fs.Int("limit", 0, "article count")
	symbol, err := symbolArg(fs, args)
	if err != nil {
		return err
	}

	n, err := marketmood.NewClient(*server).News(ctx, symbol, *limit)
	if err != nil {
		return err
	}
	if n.Warning != "" {
		fmt.Printf("warning: %s\n", n.Warning)
	}
	if len(n.Articles) == 0 {
		fmt.Printf("%s: no recent articles\n", n.Symbol)
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, a := range n.Articles {
		fmt.Fprintf(w, "%s\t%s\t%s\n", a.PublishedAt.Format("01-02 15:04"), a.Source, a.Title)
	}
	return w.Flush()
}

func cmdFundamentals(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fundamentals", flag.ExitOnError)
	server := serverFlag(fs)
	symbol, err := symbolArg(fs, args)
	if err != nil {
		return err
	}

	f, err := marketmood.NewClient(*server).Fundamentals(ctx, symbol)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%s)\n", f.Symbol, display.TierNote(domain.Tier(f.Tier)))
	if f.Warning != "" {
		fmt.Printf("warning: %s\n", f.Warning)
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "market cap\t%s\n", display.FormatCompact(opt(f.MarketCap)))
	fmt.Fprintf(w, "p/e\t%s\n", display.FormatPrice(opt(f.PE)))
	fmt.Fprintf(w, "dividend yield\t%s\n", display.FormatFraction(opt(f.DividendYield)))
	fmt.Fprintf(w, "avg volume\t%s\n", display.FormatCompact(opt(f.AvgVolume)))
	fmt.Fprintf(w, "52w high\t%s\n", display.FormatPrice(opt(f.High52Week)))
	fmt.Fprintf(w, "52w low\t%s\n", display.FormatPrice(opt(f.Low52Week)))
	fmt.Fprintf(w, "insiders\t%s\n", display.FormatFraction(opt(f.InsiderPct)))
	fmt.Fprintf(w, "institutions\t%s\n", display.FormatFraction(opt(f.InstitutionPct)))
	if f.Sector != "" {
		fmt.Fprintf(w, "sector\t%s\n", f.Sector)
	}
	if f.Industry != "" {
		fmt.Fprintf(w, "industry\t%s\n", f.Industry)
	}
	return w.Flush()
}

func cmdMood(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("mood", flag.ExitOnError)
	server := serverFlag(fs)
	days := fs.Int("days", 0, "trailing days")
	symbol, err := symbolArg(fs, args)
	if err != nil {
		return err
	}

	m, err := marketmood.NewClient(*server).MoodHistory(ctx, symbol, *days)
	if err != nil {
		return err
	}
	if len(m.Days) == 0 {
		fmt.Printf("%s: no archived news days\n", m.Symbol)
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, d := range m.Days {
		fmt.Fprintf(w, "%s\t%s\t%d+ %d- %d=\n",
			d.Date.Format("2006-01-02"),
			display.MoodBadge(domain.Mood(d.Mood)),
			d.Counts.Positive, d.Counts.Negative, d.Counts.Neutral)
	}
	return w.Flush()
}

func cmdHeatmap(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("heatmap", flag.ExitOnError)
	server := serverFlag(fs)
	fs.Parse(args)

	h, err := marketmood.NewClient(*server).Heatmap(ctx)
	if err != nil {
		return err
	}
	for _, sector := range h.Sectors {
		fmt.Printf("%s  %s\n", sector.Name, display.FormatPct(opt(sector.AvgChangePct)))
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, tile := range sector.Tiles {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", tile.Symbol,
				display.FormatPrice(opt(tile.Price)),
				display.FormatPct(opt(tile.ChangePct)),
				display.FormatCompact(opt(tile.MarketCap)))
		}
		w.Flush()
	}
	if len(h.Skipped) > 0 {
		fmt.Printf("skipped (no quote): %v\n", h.Skipped)
	}
	return nil
}

func cmdFavorites(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("favorites", flag.ExitOnError)
	server := serverFlag(fs)
	fs.Parse(args)
	c := marketmood.NewClient(*server)

	switch {
	case fs.NArg() == 0:
		favs, err := c.Favorites(ctx)
		if err != nil {
			return err
		}
		if len(favs) == 0 {
			fmt.Println("no favorites")
			return nil
		}
		for _, f := range favs {
			fmt.Println(f)
		}
		return nil
	case fs.NArg() == 2 && fs.Arg(0) == "add":
		return c.AddFavorite(ctx, fs.Arg(1))
	case fs.NArg() == 2 && fs.Arg(0) == "remove":
		return c.RemoveFavorite(ctx, fs.Arg(1))
	default:
		return fmt.Errorf("favorites: expected no arguments, or add/remove <symbol>")
	}
}

func cmdWatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	server := serverFlag(fs)
	fs.Parse(args)

	stream, err := marketmood.NewClient(*server).Events(ctx)
	if err != nil {
		return err
	}
	defer stream.Close()

	fmt.Println("streaming session events (ctrl-c to stop)")
	for {
		evt, err := stream.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		switch evt.Kind {
		case "ticker_selected":
			fmt.Printf("ticker selected: %s\n", evt.Symbol)
		case "favorites_changed":
			fmt.Printf("favorites: %v\n", evt.Favorites)
		case "analysis_started":
			fmt.Printf("analysis started: %s (%d articles)\n", evt.Symbol, evt.Total)
		case "article_classified":
			fmt.Printf("  classified %d/%d\n", evt.Done, evt.Total)
		case "analysis_finished":
			fmt.Printf("analysis finished: %s %s\n", evt.Symbol, display.MoodBadge(domain.Mood(evt.Mood)))
			for _, warn := range evt.Warnings {
				fmt.Printf("  warning: %s\n", warn)
			}
		default:
			fmt.Printf("%s\n", evt.Kind)
		}
	}
}

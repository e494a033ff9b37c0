// Command moodmingle is a terminal client for MoodMingle.
//
//	moodmingle login -u alice -p secret123
//	moodmingle interests add Hiking
//	moodmingle recommend -location Dhaka
//	moodmingle save -title "Sunset hike"
//
// The session survives between runs through the local data file.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/sakif/moodmingle/internal/app"
	"github.com/sakif/moodmingle/internal/apperror"
	"github.com/sakif/moodmingle/internal/config"
	"github.com/sakif/moodmingle/internal/logging"
	"github.com/sakif/moodmingle/internal/model"
)

const usage = `usage: moodmingle [-server URL] <command> [flags]

commands:
  whoami                       show the signed-in user
  login    -u USER -p PASS     sign in with a username or email
  signup   -u USER -e EMAIL -p PASS -name NAME
  logout                       sign out and clear local data
  profile  [-name NAME] [-location PLACE]
  interests [list|add X|remove X|history|forget X|suggest]
  recommend [-location L] [-weather W] [-temp T]
  weather  -lat LAT -lon LON
  save     -title T [-category C] [-location L] [-weather W] [-desc D]
  unsave   -title T
  saved                        list saved activities
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", apperror.Message(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	global := flag.NewFlagSet("moodmingle", flag.ContinueOnError)
	global.SetOutput(io.Discard)
	serverFlag := global.String("server", "", "backend base URL (overrides MOODMINGLE_API_URL)")
	if err := global.Parse(args); err != nil {
		return usageError(err.Error())
	}
	rest := global.Args()
	if len(rest) == 0 {
		fmt.Fprint(out, usage)
		return nil
	}

	cfg, err := config.LoadClient()
	if err != nil {
		return apperror.ValidationFailed("", err.Error())
	}
	if *serverFlag != "" {
		cfg.APIURL = strings.TrimRight(*serverFlag, "/")
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "warn"
	}
	logger, closer := logging.New(cfg.Log, os.Stderr)
	defer closer.Close()

	a, err := app.New(ctx, *cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	cmd, cmdArgs := rest[0], rest[1:]
	switch cmd {
	case "whoami":
		return whoami(a, out)
	case "login":
		return login(ctx, a, cmdArgs, out)
	case "signup":
		return signup(ctx, a, cmdArgs, out)
	case "logout":
		if err := a.Session.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "Logged out.")
		return nil
	case "profile":
		return profile(ctx, a, cmdArgs, out)
	case "interests":
		return interests(ctx, a, cmdArgs, out)
	case "recommend":
		return recommend(ctx, a, cmdArgs, out)
	case "weather":
		return weather(ctx, a, cmdArgs, out)
	case "save":
		return save(ctx, a, cmdArgs, out)
	case "unsave":
		return unsave(ctx, a, cmdArgs, out)
	case "saved":
		return listSaved(a, out)
	case "help":
		fmt.Fprint(out, usage)
		return nil
	default:
		return usageError(fmt.Sprintf("unknown command %q", cmd))
	}
}

func usageError(msg string) error {
	return apperror.ValidationFailed("", msg+"\n\n"+usage)
}

func parse(fs *flag.FlagSet, args []string) error {
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return usageError(fmt.Sprintf("%s: %v", fs.Name(), err))
	}
	return nil
}

// =========================================================================
// ACCOUNT
// =========================================================================

func whoami(a *app.App, out io.Writer) error {
	id := a.Session.Identity()
	if id == nil {
		fmt.Fprintln(out, "Not logged in (browsing as guest).")
		return nil
	}
	fmt.Fprintf(out, "%s (@%s)\n", id.DisplayName, id.Username)
	fmt.Fprintf(out, "  email:     %s\n", id.Email)
	if id.Location != "" {
		fmt.Fprintf(out, "  location:  %s\n", id.Location)
	}
	if id.MemberSince != "" {
		fmt.Fprintf(out, "  member since %s\n", id.MemberSince)
	}
	fmt.Fprintf(out, "  interests: %s\n", joinOrNone(id.Interests))
	return nil
}

func login(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	user := fs.String("u", "", "username or email")
	pass := fs.String("p", "", "password")
	if err := parse(fs, args); err != nil {
		return err
	}

	id, err := a.Session.Login(ctx, model.Credentials{Identifier: *user, Password: *pass})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Welcome back, %s.\n", nameOf(id))
	return nil
}

func signup(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("signup", flag.ContinueOnError)
	user := fs.String("u", "", "username")
	email := fs.String("e", "", "email")
	pass := fs.String("p", "", "password")
	name := fs.String("name", "", "display name")
	if err := parse(fs, args); err != nil {
		return err
	}

	id, err := a.Session.Signup(ctx, model.Registration{
		Username:    *user,
		Email:       *email,
		Password:    *pass,
		DisplayName: *name,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Welcome to MoodMingle, %s.\n", nameOf(id))
	return nil
}

func profile(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("profile", flag.ContinueOnError)
	var update model.ProfileUpdate
	fs.Func("name", "new display name", func(s string) error {
		update.DisplayName = &s
		return nil
	})
	fs.Func("location", "new location", func(s string) error {
		update.Location = &s
		return nil
	})
	if err := parse(fs, args); err != nil {
		return err
	}

	if update.IsEmpty() {
		return whoami(a, out)
	}
	if err := a.Session.UpdateProfile(ctx, update); err != nil {
		return err
	}
	fmt.Fprintln(out, "Profile updated.")
	return whoami(a, out)
}

// =========================================================================
// DISCOVER
// =========================================================================

func interests(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}
	value := strings.Join(args, " ")

	switch sub {
	case "list":
		fmt.Fprintln(out, joinOrNone(a.Board.Interests()))
	case "add":
		if err := a.Board.Add(value); err != nil {
			return err
		}
		return persistInterests(ctx, a, out)
	case "remove":
		if !a.Board.Remove(value) {
			return apperror.ValidationFailed("interest", fmt.Sprintf("%q is not one of your interests", value))
		}
		return persistInterests(ctx, a, out)
	case "history":
		history, err := a.Board.History(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, joinOrNone(history))
	case "forget":
		return a.Board.ForgetHistory(ctx, value)
	case "suggest":
		fmt.Fprintln(out, joinOrNone(a.Board.Suggestions()))
	default:
		return usageError(fmt.Sprintf("unknown interests command %q", sub))
	}
	return nil
}

// persistInterests stores the board between CLI runs: on the account when signed
// in, in the local guest slot otherwise.
func persistInterests(ctx context.Context, a *app.App, out io.Writer) error {
	values := a.Board.Interests()
	if a.Session.IsAuthenticated() {
		if err := a.Session.UpdateInterests(ctx, values); err != nil {
			return err
		}
	} else if err := a.Store.SetGuestInterests(ctx, values); err != nil {
		return fmt.Errorf("saving interests: %w", err)
	}
	fmt.Fprintln(out, joinOrNone(values))
	return nil
}

func recommend(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("recommend", flag.ContinueOnError)
	location := fs.String("location", "", "where you are")
	weatherFlag := fs.String("weather", "", "current conditions")
	temp := fs.String("temp", "", "temperature in Celsius")
	if err := parse(fs, args); err != nil {
		return err
	}

	recs, err := a.Board.Generate(ctx, model.Conditions{
		Location:    *location,
		Weather:     *weatherFlag,
		Temperature: *temp,
	})
	if err != nil {
		return err
	}

	printSection(out, "Outdoor activities", recs.OutdoorActivities, a)
	printSection(out, "Indoor activities", recs.IndoorActivities, a)
	printSection(out, "Local events", recs.LocalEvents, a)
	if len(recs.Considerations) > 0 {
		fmt.Fprintln(out, "Considerations:")
		for _, c := range recs.Considerations {
			fmt.Fprintf(out, "  - %s\n", c)
		}
	}
	return nil
}

func printSection(out io.Writer, title string, recs []model.Recommendation, a *app.App) {
	if len(recs) == 0 {
		return
	}
	fmt.Fprintf(out, "%s:\n", title)
	for _, r := range recs {
		mark := " "
		if a.Saved.IsSaved(r.Name) {
			mark = "*"
		}
		fmt.Fprintf(out, " %s %s [%s]\n     %s\n", mark, r.Name, r.Genre, r.Description)
	}
}

func weather(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("weather", flag.ContinueOnError)
	lat := fs.Float64("lat", 0, "latitude")
	lon := fs.Float64("lon", 0, "longitude")
	if err := parse(fs, args); err != nil {
		return err
	}

	report, err := a.Board.Weather(ctx, *lat, *lon)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %s, %.1f°C, wind %.1f kph\n",
		report.Location, report.Weather.Condition, report.Weather.Temperature, report.Weather.WindSpeed)
	for _, alert := range report.Weather.Alerts {
		fmt.Fprintf(out, "  ! %s (%s)\n", alert.Headline, alert.Severity)
	}
	return nil
}

// =========================================================================
// SAVED
// =========================================================================

func save(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("save", flag.ContinueOnError)
	var act model.SavedActivity
	fs.StringVar(&act.Title, "title", "", "activity title")
	fs.StringVar(&act.Category, "category", "", "category")
	fs.StringVar(&act.Location, "location", "", "location")
	fs.StringVar(&act.Weather, "weather", "", "weather")
	fs.StringVar(&act.Description, "desc", "", "description")
	if err := parse(fs, args); err != nil {
		return err
	}

	if a.Saved.IsSaved(act.Title) {
		fmt.Fprintf(out, "%q is already saved.\n", act.Title)
		return nil
	}
	return toggle(ctx, a, act, out)
}

func unsave(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("unsave", flag.ContinueOnError)
	title := fs.String("title", "", "activity title")
	if err := parse(fs, args); err != nil {
		return err
	}

	if !a.Saved.IsSaved(*title) {
		return apperror.NotFound("saved activity", *title)
	}
	return toggle(ctx, a, model.SavedActivity{Title: *title}, out)
}

func toggle(ctx context.Context, a *app.App, act model.SavedActivity, out io.Writer) error {
	saved, err := a.Saved.ToggleSave(ctx, act)
	if err != nil {
		return err
	}
	if saved {
		fmt.Fprintf(out, "Saved %q.\n", act.Title)
	} else {
		fmt.Fprintf(out, "Removed %q.\n", act.Title)
	}
	return nil
}

func listSaved(a *app.App, out io.Writer) error {
	items := a.Saved.Activities()
	if len(items) == 0 {
		fmt.Fprintln(out, "No saved activities.")
		return nil
	}
	for _, it := range items {
		fmt.Fprintf(out, "- %s", it.Title)
		if it.Category != "" {
			fmt.Fprintf(out, " [%s]", it.Category)
		}
		fmt.Fprintln(out)
		if it.Description != "" {
			fmt.Fprintf(out, "    %s\n", it.Description)
		}
	}
	return nil
}

func nameOf(id *model.Identity) string {
	if id.DisplayName != "" {
		return id.DisplayName
	}
	return id.Username
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "(none)"
	}
	return strings.Join(values, ", ")
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/goph-vault/internal/config"
	"github.com/and161185/goph-vault/internal/errs"
	"github.com/and161185/goph-vault/internal/model"
	"github.com/and161185/goph-vault/internal/service"
)

// recordView is what the CLI prints for a record; the secret stays out.
type recordView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Username    string    `json:"username,omitempty"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func viewOf(r model.Record) recordView {
	v := recordView{
		ID:          r.ID.String(),
		Title:       r.Title,
		Description: r.Description,
		Tags:        r.Tags,
		Username:    r.Username,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.URL != nil {
		v.URL = *r.URL
	}
	return v
}

func viewsOf(rs []model.Record) []recordView {
	out := make([]recordView, 0, len(rs))
	for _, r := range rs {
		out = append(out, viewOf(r))
	}
	return out
}

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

func parseID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, fmt.Errorf("%w: need -id", errUsage)
	}
	id, err := uuid.FromString(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("bad -id: %w", err)
	}
	return id, nil
}

func splitTags(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// unlock reads the passphrase (flag or prompt) and checks it against the master hash.
func (a *app) unlock(svc service.VaultService, flagVal string) (string, error) {
	key, err := a.readSecret("passphrase: ", flagVal)
	if err != nil {
		return "", err
	}
	if err := svc.CheckPassphrase(key); err != nil {
		return "", err
	}
	return key, nil
}

// reportPartial prints what succeeded before returning the aggregated error.
func (a *app) reportPartial(err error) error {
	if failed := errs.Failed(err); len(failed) > 0 {
		fmt.Fprintf(a.errOut, "warning: not saved to %s\n", strings.Join(failed, ", "))
	}
	return err
}

func (a *app) cmdInit(_ context.Context, svc service.VaultService, args []string) error {
	fs := a.flags("init")
	key := fs.String("key", "", "master passphrase")
	force := fs.Bool("force", false, "replace an existing passphrase")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	pass, err := a.readSecret("new passphrase: ", *key)
	if err != nil {
		return err
	}
	if err := svc.SetPassphrase(pass, *force); err != nil {
		return err
	}
	// Only the hash is new; env-sourced secrets and expanded paths stay off disk.
	onDisk, err := config.LoadFile(a.cfgPath)
	if err != nil {
		return err
	}
	onDisk.Settings.MasterKeyHash = svc.Config().Settings.MasterKeyHash
	if err := onDisk.Save(a.cfgPath); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	a.printJSON(map[string]string{"status": "ok", "config": a.cfgPath})
	return nil
}

func (a *app) cmdAdd(ctx context.Context, svc service.VaultService, args []string) error {
	fs := a.flags("add")
	title := fs.String("title", "", "title")
	desc := fs.String("desc", "", "description")
	tags := fs.String("tags", "", "comma separated tags")
	user := fs.String("user", "", "username")
	link := fs.String("url", "", "url")
	password := fs.String("password", "", "password (prompted when empty)")
	gen := fs.Bool("gen", false, "generate the password")
	length := fs.Int("len", 0, "generated length")
	key := fs.String("key", "", "passphrase")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *title == "" {
		return fmt.Errorf("%w: need -title", errUsage)
	}

	pw := *password
	if *gen {
		g, err := svc.Generate(model.GenerateOptions{Length: *length})
		if err != nil {
			return err
		}
		pw = g
	}
	if pw == "" {
		var err error
		if pw, err = a.readSecret("password: ", ""); err != nil {
			return err
		}
	}
	k, err := a.unlock(svc, *key)
	if err != nil {
		return err
	}

	req := model.AddRequest{
		Title:       *title,
		Description: *desc,
		Tags:        splitTags(*tags),
		Username:    *user,
		Password:    pw,
		Key:         k,
	}
	if *link != "" {
		req.URL = link
	}
	rec, err := svc.Add(ctx, req)
	if rec.ID != uuid.Nil {
		a.printJSON(viewOf(rec))
	}
	return a.reportPartial(err)
}

func (a *app) cmdEdit(ctx context.Context, svc service.VaultService, args []string) error {
	fs := a.flags("edit")
	id := fs.String("id", "", "record id")
	title := fs.String("title", "", "new title")
	desc := fs.String("desc", "", "new description")
	tags := fs.String("tags", "", "new comma separated tags")
	user := fs.String("user", "", "new username")
	link := fs.String("url", "", "new url (empty clears)")
	password := fs.String("password", "", "new password")
	key := fs.String("key", "", "passphrase (needed with -password)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	rid, err := parseID(*id)
	if err != nil {
		return err
	}

	var req model.UpdateRequest
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "title":
			req.Title = title
		case "desc":
			req.Description = desc
		case "tags":
			t := splitTags(*tags)
			req.Tags = &t
		case "user":
			req.Username = user
		case "url":
			req.URL = link
		case "password":
			req.Password = password
		}
	})
	if req.Password != nil {
		if req.Key, err = a.unlock(svc, *key); err != nil {
			return err
		}
	}
	rec, err := svc.Update(ctx, rid, req)
	if rec.ID != uuid.Nil {
		a.printJSON(viewOf(rec))
	}
	return a.reportPartial(err)
}

func (a *app) cmdRemove(ctx context.Context, svc service.VaultService, args []string) error {
	fs := a.flags("rm")
	id := fs.String("id", "", "record id")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	rid, err := parseID(*id)
	if err != nil {
		return err
	}
	err = svc.Delete(ctx, rid)
	if errors.Is(err, errs.ErrNotFound) {
		return err
	}
	a.printJSON(map[string]string{"deleted": rid.String()})
	return a.reportPartial(err)
}

func (a *app) parseTargetFlag(fs *flag.FlagSet, args []string, target *string) (model.BackendTarget, error) {
	if err := fs.Parse(args); err != nil {
		return model.TargetAll, errUsage
	}
	return model.ParseTarget(*target)
}

func (a *app) cmdSearch(_ context.Context, svc service.VaultService, args []string) error {
	fs := a.flags("search")
	q := fs.String("q", "", "query (title or description)")
	target := fs.String("target", "all", "storage scope")
	t, err := a.parseTargetFlag(fs, args, target)
	if err != nil {
		return err
	}
	if *q == "" && fs.NArg() > 0 {
		*q = strings.Join(fs.Args(), " ")
	}
	rs, err := svc.Search(*q, t)
	if err != nil {
		return err
	}
	a.printJSON(viewsOf(rs))
	return nil
}

func (a *app) cmdList(_ context.Context, svc service.VaultService, args []string) error {
	fs := a.flags("list")
	target := fs.String("target", "all", "storage scope")
	t, err := a.parseTargetFlag(fs, args, target)
	if err != nil {
		return err
	}
	rs, err := svc.List(t)
	if err != nil {
		return err
	}
	a.printJSON(viewsOf(rs))
	return nil
}

func (a *app) cmdShow(_ context.Context, svc service.VaultService, args []string) error {
	fs := a.flags("show")
	id := fs.String("id", "", "record id")
	target := fs.String("target", "all", "storage scope")
	key := fs.String("key", "", "passphrase")
	t, err := a.parseTargetFlag(fs, args, target)
	if err != nil {
		return err
	}
	rid, err := parseID(*id)
	if err != nil {
		return err
	}
	rec, err := svc.Get(rid, t)
	if err != nil {
		return err
	}
	k, err := a.unlock(svc, *key)
	if err != nil {
		return err
	}
	plain, err := svc.Decrypt(k, rec.Secret)
	if err != nil {
		return err
	}
	a.printJSON(struct {
		recordView
		Password string `json:"password"`
	}{viewOf(rec), plain})
	return nil
}

func (a *app) cmdGenerate(_ context.Context, svc service.VaultService, args []string) error {
	fs := a.flags("gen")
	var opts model.GenerateOptions
	fs.IntVar(&opts.Length, "len", 0, "length (config default when 0)")
	fs.BoolVar(&opts.NoUpper, "no-upper", false, "no upper-case letters")
	fs.BoolVar(&opts.NoLower, "no-lower", false, "no lower-case letters")
	fs.BoolVar(&opts.NoDigits, "no-digits", false, "no digits")
	fs.BoolVar(&opts.NoSymbols, "no-symbols", false, "no symbols")
	fs.StringVar(&opts.Exclude, "exclude", "", "characters to leave out")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	p, err := svc.Generate(opts)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, p)
	return nil
}

func (a *app) cmdStatus(ctx context.Context, svc service.VaultService, _ []string) error {
	a.printJSON(svc.Status(ctx))
	return nil
}

func (a *app) cmdResync(ctx context.Context, svc service.VaultService, args []string) error {
	fs := a.flags("resync")
	target := fs.String("target", "", "storage to reload")
	t, err := a.parseTargetFlag(fs, args, target)
	if err != nil {
		return err
	}
	if t == model.TargetAll {
		return fmt.Errorf("%w: need -target", errUsage)
	}
	if err := svc.Resync(ctx, t); err != nil {
		return err
	}
	a.printJSON(map[string]string{"resynced": t.String()})
	return nil
}

func (a *app) cmdCopy(ctx context.Context, svc service.VaultService, args []string) error {
	fs := a.flags("copy")
	from := fs.String("from", "", "source storage")
	to := fs.String("to", "", "destination storage (overwritten)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	src, err := model.ParseTarget(*from)
	if err != nil {
		return err
	}
	dst, err := model.ParseTarget(*to)
	if err != nil {
		return err
	}
	if src == model.TargetAll || dst == model.TargetAll {
		return fmt.Errorf("%w: need -from and -to", errUsage)
	}
	if err := svc.Copy(ctx, src, dst); err != nil {
		return a.reportPartial(err)
	}
	a.printJSON(map[string]string{"from": src.String(), "to": dst.String()})
	return nil
}

func (a *app) cmdPurge(ctx context.Context, svc service.VaultService, args []string) error {
	fs := a.flags("purge")
	target := fs.String("target", "", "storage to wipe")
	yes := fs.Bool("yes", false, "confirm")
	t, err := a.parseTargetFlag(fs, args, target)
	if err != nil {
		return err
	}
	if t == model.TargetAll || !*yes {
		return fmt.Errorf("%w: need -target and -yes", errUsage)
	}
	if err := svc.Purge(ctx, t); err != nil {
		return err
	}
	a.printJSON(map[string]string{"purged": t.String()})
	return nil
}

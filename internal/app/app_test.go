package app

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"playsdb/internal/token"
	"playsdb/pkg/domain"
	"playsdb/pkg/mail"
	"playsdb/pkg/store"
)

type fakeMailer struct {
	sent []mail.Message
}

func (f *fakeMailer) Enqueue(msg mail.Message) {
	f.sent = append(f.sent, msg)
}

func newTestApp(t *testing.T) (*App, *store.MemoryStore, *fakeMailer) {
	t.Helper()
	mgr, err := token.NewManager("test-secret", token.Options{})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	st := store.NewMemoryStore()
	mailer := &fakeMailer{}
	a, err := New(Config{
		Store:        st,
		Tokens:       mgr,
		Mailer:       mailer,
		SupportEmail: "support@example.com",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a, st, mailer
}

func signup(t *testing.T, a *App, email string, account int) domain.User {
	t.Helper()
	user, err := a.Signup(SignupInput{
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     email,
		Phone:     "555-0100",
		Password:  "hunter22pass",
		Account:   account,
		Contact:   domain.ContactYes,
	})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	return user
}

func TestSignupAndLogin(t *testing.T) {
	a, _, mailer := newTestApp(t)

	user := signup(t, a, "Jane@Example.COM", domain.RolePlaywright)
	if user.Email != "jane@example.com" {
		t.Errorf("email not normalized: %q", user.Email)
	}
	if user.PasswordHash == "hunter22pass" || user.PasswordHash == "" {
		t.Error("password stored in the clear")
	}
	// Admin notification plus welcome mail.
	if len(mailer.sent) != 2 {
		t.Fatalf("sent %d mails, want 2", len(mailer.sent))
	}
	if mailer.sent[0].To != "support@example.com" {
		t.Errorf("first mail to %q, want support inbox", mailer.sent[0].To)
	}
	if mailer.sent[1].To != "jane@example.com" {
		t.Errorf("welcome mail to %q", mailer.sent[1].To)
	}

	got, session, err := a.Login("jane@example.com", "hunter22pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("logged in as %q, want %q", got.ID, user.ID)
	}
	claims, err := a.Tokens().VerifySession(session)
	if err != nil {
		t.Fatalf("VerifySession: %v", err)
	}
	if claims.Subject != user.ID || claims.Account != domain.RolePlaywright {
		t.Errorf("claims = %q/%d", claims.Subject, claims.Account)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	a, _, _ := newTestApp(t)
	signup(t, a, "jane@example.com", domain.RoleEducator)

	if _, _, err := a.Login("jane@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: err = %v", err)
	}
	if _, _, err := a.Login("nobody@example.com", "hunter22pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: err = %v", err)
	}
}

func TestSignupRejectsElevatedRoles(t *testing.T) {
	a, _, _ := newTestApp(t)
	for _, role := range []int{domain.RoleUnlockedEducator, domain.RoleUnlockedPlaywright, domain.RoleAdmin, 7} {
		_, err := a.Signup(SignupInput{
			FirstName: "Eve", LastName: "Adams", Email: "eve@example.com",
			Phone: "555-0101", Password: "hunter22pass", Account: role,
		})
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("role %d: err = %v, want validation error", role, err)
		}
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	a, _, _ := newTestApp(t)
	signup(t, a, "jane@example.com", domain.RoleEducator)

	_, err := a.Signup(SignupInput{
		FirstName: "Janet", LastName: "Doe", Email: "JANE@example.com",
		Phone: "555-0102", Password: "hunter22pass", Account: domain.RoleEducator,
	})
	if !errors.Is(err, ErrEmailInUse) {
		t.Errorf("err = %v, want ErrEmailInUse", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	a, st, mailer := newTestApp(t)
	user := signup(t, a, "jane@example.com", domain.RoleEducator)
	mailer.sent = nil

	if err := a.ForgotPassword("jane@example.com"); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("sent %d mails, want 1", len(mailer.sent))
	}
	stored, _, _ := st.GetUserByID(user.ID)
	if stored.ResetToken == "" {
		t.Fatal("no reset token stored")
	}
	if !strings.Contains(mailer.sent[0].Text, stored.ResetToken) {
		t.Error("reset mail does not carry the token link")
	}

	// Unknown email stays silent.
	mailer.sent = nil
	if err := a.ForgotPassword("nobody@example.com"); err != nil {
		t.Fatalf("ForgotPassword unknown: %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Error("mail sent for unknown email")
	}

	got, session, err := a.ResetPassword(stored.ResetToken, "newpassword1")
	if err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if got.ID != user.ID || session == "" {
		t.Error("reset did not log the user in")
	}
	if _, _, err := a.Login("jane@example.com", "newpassword1"); err != nil {
		t.Errorf("login with new password: %v", err)
	}

	// Token is single-use.
	if _, _, err := a.ResetPassword(stored.ResetToken, "anotherpass1"); !errors.Is(err, ErrInvalidResetToken) {
		t.Errorf("reused token: err = %v", err)
	}
}

func TestResetPasswordExpiredToken(t *testing.T) {
	a, _, _ := newTestApp(t)
	signup(t, a, "jane@example.com", domain.RoleEducator)

	base := time.Now().UTC()
	a.now = func() time.Time { return base }
	if err := a.ForgotPassword("jane@example.com"); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	stored, _, _ := a.store.GetUserByEmail("jane@example.com")

	a.now = func() time.Time { return base.Add(resetTokenTTL + time.Minute) }
	if _, _, err := a.ResetPassword(stored.ResetToken, "newpassword1"); !errors.Is(err, ErrInvalidResetToken) {
		t.Errorf("expired token: err = %v", err)
	}
}

func TestUpdateProfilePartial(t *testing.T) {
	a, _, _ := newTestApp(t)
	user := signup(t, a, "jane@example.com", domain.RoleEducator)

	pic := "data:image/png;base64,aGk="
	bio := "Writes one-act plays."
	updated, err := a.UpdateProfile(user.ID, UserPatch{
		ProfilePicture: &pic,
		Profile:        &ProfilePatch{Biography: &bio},
	})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if updated.Profile.ProfilePicture != pic || updated.Profile.Biography != bio {
		t.Error("patched fields not applied")
	}
	if updated.FirstName != "Jane" || updated.Phone != "555-0100" {
		t.Error("untouched fields changed")
	}

	// Later patch without a picture keeps the stored one.
	country := "Canada"
	updated, err = a.UpdateProfile(user.ID, UserPatch{Profile: &ProfilePatch{Country: &country}})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if updated.Profile.ProfilePicture != pic {
		t.Error("profile picture lost on unrelated patch")
	}
}

func TestUpdateProfileValidation(t *testing.T) {
	a, _, _ := newTestApp(t)
	user := signup(t, a, "jane@example.com", domain.RoleEducator)

	long := strings.Repeat("x", maxNameLen+1)
	blank := "   "
	badRole := 9
	cases := []UserPatch{
		{FirstName: &long},
		{FirstName: &blank},
		{Account: &badRole},
		{Profile: &ProfilePatch{Description: ptr(strings.Repeat("d", maxDescriptionLen+1))}},
		{Profile: &ProfilePatch{Biography: ptr(strings.Repeat("b", maxBiographyLen+1))}},
		{Profile: &ProfilePatch{Country: ptr(strings.Repeat("c", maxCountryLen+1))}},
	}
	for i, patch := range cases {
		_, err := a.UpdateProfile(user.ID, patch)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("case %d: err = %v, want validation error", i, err)
		}
	}
	// Rejected patches leave the record untouched.
	stored, _ := a.GetUser(user.ID)
	if stored.FirstName != "Jane" {
		t.Error("rejected patch modified the record")
	}
}

func TestAdminUserManagement(t *testing.T) {
	a, st, _ := newTestApp(t)
	user := signup(t, a, "jane@example.com", domain.RolePlaywright)

	promoted, err := a.AdminSetAccount(user.ID, domain.RoleUnlockedPlaywright)
	if err != nil {
		t.Fatalf("AdminSetAccount: %v", err)
	}
	if promoted.Account != domain.RoleUnlockedPlaywright {
		t.Errorf("account = %d", promoted.Account)
	}
	if _, err := a.AdminSetAccount(user.ID, 11); err == nil {
		t.Error("invalid level accepted")
	}

	play, err := a.CreatePlay(promoted, PlayInput{Title: "The Glass House"})
	if err != nil {
		t.Fatalf("CreatePlay: %v", err)
	}
	if err := a.AdminDeleteUser(user.ID); err != nil {
		t.Fatalf("AdminDeleteUser: %v", err)
	}
	if _, ok, _ := st.GetUserByID(user.ID); ok {
		t.Error("user still present")
	}
	if _, ok, _ := st.GetPlay(play.ID); ok {
		t.Error("orphaned play still present")
	}
}

func TestCreatePlayRoleGate(t *testing.T) {
	a, _, _ := newTestApp(t)
	for _, role := range []int{domain.RoleEducator, domain.RolePlaywright, domain.RoleUnlockedEducator} {
		actor := domain.User{ID: "u1", Account: role}
		if _, err := a.CreatePlay(actor, PlayInput{Title: "Nope"}); !errors.Is(err, ErrForbidden) {
			t.Errorf("role %d: err = %v, want ErrForbidden", role, err)
		}
	}
}

func TestPlayLifecycle(t *testing.T) {
	a, _, _ := newTestApp(t)
	author := signup(t, a, "jane@example.com", domain.RolePlaywright)
	author, err := a.AdminSetAccount(author.ID, domain.RoleUnlockedPlaywright)
	if err != nil {
		t.Fatalf("AdminSetAccount: %v", err)
	}

	script := base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 fake"))
	play, err := a.CreatePlay(author, PlayInput{
		Title:    "  The Glass House  ",
		Acts:     2,
		Duration: 90,
		Genre:    "Drama",
		Script:   &Upload{Filename: "glass.pdf", MimeType: "application/pdf", Data: script},
	})
	if err != nil {
		t.Fatalf("CreatePlay: %v", err)
	}
	if play.Title != "The Glass House" {
		t.Errorf("title = %q", play.Title)
	}
	if !play.HasSample() {
		t.Error("script attachment missing")
	}

	view, err := a.GetPlay(play.ID)
	if err != nil {
		t.Fatalf("GetPlay: %v", err)
	}
	if view.Author != "Jane Doe" {
		t.Errorf("author = %q", view.Author)
	}
	if !view.HasSample {
		t.Error("view does not report the sample")
	}

	file, raw, err := a.GetSample(play.ID)
	if err != nil {
		t.Fatalf("GetSample: %v", err)
	}
	if file.Filename != "glass.pdf" || string(raw) != "%PDF-1.4 fake" {
		t.Errorf("sample = %q / %q", file.Filename, raw)
	}

	// Partial update keeps everything not named in the patch.
	updated, err := a.UpdatePlay(author, play.ID, PlayPatch{Duration: ptr(120)})
	if err != nil {
		t.Fatalf("UpdatePlay: %v", err)
	}
	if updated.Duration != 120 || updated.Genre != "Drama" || !updated.HasSample() {
		t.Error("patch clobbered unrelated fields")
	}

	// A stranger cannot update or delete.
	stranger := domain.User{ID: "someone-else", Account: domain.RoleUnlockedPlaywright}
	if _, err := a.UpdatePlay(stranger, play.ID, PlayPatch{Duration: ptr(1)}); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger update: err = %v", err)
	}
	if err := a.DeletePlay(stranger, play.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger delete: err = %v", err)
	}

	// An admin can.
	admin := domain.User{ID: "admin", Account: domain.RoleAdmin}
	if err := a.DeletePlay(admin, play.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if _, err := a.GetPlay(play.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete: err = %v", err)
	}
}

func TestGetSampleMissing(t *testing.T) {
	a, _, _ := newTestApp(t)
	author := signup(t, a, "jane@example.com", domain.RolePlaywright)
	author, _ = a.AdminSetAccount(author.ID, domain.RoleUnlockedPlaywright)

	play, err := a.CreatePlay(author, PlayInput{Title: "No Sample"})
	if err != nil {
		t.Fatalf("CreatePlay: %v", err)
	}
	if _, _, err := a.GetSample(play.ID); !errors.Is(err, ErrNoSample) {
		t.Errorf("err = %v, want ErrNoSample", err)
	}
}

func TestEncodeCoverImage(t *testing.T) {
	data := base64.StdEncoding.EncodeToString([]byte("png-bytes"))

	uri, err := EncodeCoverImage(Upload{MimeType: "image/PNG", Data: data})
	if err != nil {
		t.Fatalf("EncodeCoverImage: %v", err)
	}
	if uri != "data:image/png;base64,"+data {
		t.Errorf("uri = %q", uri)
	}

	if _, err := EncodeCoverImage(Upload{MimeType: "image/gif", Data: data}); err == nil {
		t.Error("gif accepted")
	}
	if _, err := EncodeCoverImage(Upload{MimeType: "image/png", Data: "not base64!!"}); err == nil {
		t.Error("bad base64 accepted")
	}
	big := base64.StdEncoding.EncodeToString(make([]byte, maxCoverImageBytes+1))
	if _, err := EncodeCoverImage(Upload{MimeType: "image/png", Data: big}); err == nil {
		t.Error("oversized image accepted")
	}
}

func TestEncodeScriptTypes(t *testing.T) {
	data := base64.StdEncoding.EncodeToString([]byte("doc"))
	for _, mime := range []string{
		"application/pdf",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	} {
		if _, err := EncodeScript(Upload{Filename: "f", MimeType: mime, Data: data}); err != nil {
			t.Errorf("%s rejected: %v", mime, err)
		}
	}
	if _, err := EncodeScript(Upload{Filename: "f", MimeType: "text/plain", Data: data}); err == nil {
		t.Error("text/plain accepted")
	}
}

func TestIssueEditToken(t *testing.T) {
	a, _, _ := newTestApp(t)
	author := signup(t, a, "jane@example.com", domain.RolePlaywright)
	author, _ = a.AdminSetAccount(author.ID, domain.RoleUnlockedPlaywright)
	play, err := a.CreatePlay(author, PlayInput{Title: "Editable"})
	if err != nil {
		t.Fatalf("CreatePlay: %v", err)
	}

	tok, err := a.IssueEditToken(author, play.ID)
	if err != nil {
		t.Fatalf("IssueEditToken: %v", err)
	}
	claims, err := a.Tokens().VerifyEditToken(tok)
	if err != nil {
		t.Fatalf("VerifyEditToken: %v", err)
	}
	if claims.Subject != author.ID || claims.PlayID != play.ID {
		t.Errorf("claims = %q/%q", claims.Subject, claims.PlayID)
	}

	stranger := domain.User{ID: "other", Account: domain.RoleUnlockedPlaywright}
	if _, err := a.IssueEditToken(stranger, play.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger: err = %v", err)
	}
}

func TestContactUserCooldown(t *testing.T) {
	a, st, mailer := newTestApp(t)
	sender := signup(t, a, "sender@example.com", domain.RoleEducator)
	recipient := signup(t, a, "recipient@example.com", domain.RolePlaywright)
	mailer.sent = nil

	base := time.Now().UTC()
	a.now = func() time.Time { return base }

	in := ContactInput{Name: "Jane Doe", Email: "sender@example.com", Message: "Loved your play."}
	if err := a.ContactUser(sender, recipient.ID, in); err != nil {
		t.Fatalf("first contact: %v", err)
	}
	if len(mailer.sent) != 1 || mailer.sent[0].To != "recipient@example.com" {
		t.Fatalf("mail dispatch wrong: %+v", mailer.sent)
	}
	if !strings.Contains(mailer.sent[0].Text, "N/A") {
		t.Error("missing phone not rendered as N/A")
	}

	// Second attempt inside the window is rejected with a minute count.
	sender, _, _ = st.GetUserByID(sender.ID)
	a.now = func() time.Time { return base.Add(30 * time.Minute) }
	err := a.ContactUser(sender, recipient.ID, in)
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("second contact: err = %v", err)
	}
	if rl.WaitMinutes() != 30 {
		t.Errorf("wait = %d minutes, want 30", rl.WaitMinutes())
	}

	// After the window the contact goes through again.
	a.now = func() time.Time { return base.Add(a.cooldown + time.Second) }
	if err := a.ContactUser(sender, recipient.ID, in); err != nil {
		t.Fatalf("post-cooldown contact: %v", err)
	}

	// A different recipient is never blocked by the first one's entry.
	third := signup(t, a, "third@example.com", domain.RolePlaywright)
	sender, _, _ = st.GetUserByID(sender.ID)
	a.now = func() time.Time { return base.Add(time.Minute) }
	if err := a.ContactUser(sender, third.ID, in); err != nil {
		t.Fatalf("other recipient: %v", err)
	}
}

func TestContactUserRespectsOptOut(t *testing.T) {
	a, st, _ := newTestApp(t)
	sender := signup(t, a, "sender@example.com", domain.RoleEducator)
	recipient := signup(t, a, "recipient@example.com", domain.RolePlaywright)
	recipient.Contact = domain.ContactNo
	if err := st.UpdateUser(recipient); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}

	err := a.ContactUser(sender, recipient.ID, ContactInput{
		Name: "Jane", Email: "sender@example.com", Message: "hi",
	})
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
}

func TestContactSite(t *testing.T) {
	a, _, mailer := newTestApp(t)
	err := a.ContactSite(ContactInput{
		Name: "Visitor", Email: "v@example.com", Phone: "555", Message: "General question",
	})
	if err != nil {
		t.Fatalf("ContactSite: %v", err)
	}
	if len(mailer.sent) != 1 || mailer.sent[0].To != "support@example.com" {
		t.Fatalf("mail = %+v", mailer.sent)
	}
	if err := a.ContactSite(ContactInput{Name: "", Email: "", Message: ""}); err == nil {
		t.Error("empty submission accepted")
	}
}

func TestSearchPlaysPaginationEnvelope(t *testing.T) {
	a, _, _ := newTestApp(t)
	author := signup(t, a, "jane@example.com", domain.RolePlaywright)
	author, _ = a.AdminSetAccount(author.ID, domain.RoleUnlockedPlaywright)
	for _, title := range []string{"Alpha", "Beta", "Gamma"} {
		if _, err := a.CreatePlay(author, PlayInput{Title: title}); err != nil {
			t.Fatalf("CreatePlay %s: %v", title, err)
		}
	}

	res, err := a.SearchPlays(store.PlayQuery{Limit: 2})
	if err != nil {
		t.Fatalf("SearchPlays: %v", err)
	}
	if res.TotalResults != 3 || res.TotalPages != 2 || res.CurrentPage != 1 {
		t.Errorf("envelope = %d/%d/%d", res.TotalResults, res.TotalPages, res.CurrentPage)
	}
	if !res.HasNextPage || res.HasPrevPage {
		t.Error("page flags wrong on page 1")
	}
	if len(res.Plays) != 2 || res.Plays[0].Title != "Alpha" {
		t.Errorf("page 1 = %+v", res.Plays)
	}
	if res.Plays[0].Author != "Jane Doe" {
		t.Errorf("author = %q", res.Plays[0].Author)
	}

	res, err = a.SearchPlays(store.PlayQuery{Limit: 2, Page: 2})
	if err != nil {
		t.Fatalf("SearchPlays page 2: %v", err)
	}
	if res.HasNextPage || !res.HasPrevPage || len(res.Plays) != 1 {
		t.Errorf("page 2 = %+v", res)
	}
}

func ptr[T any](v T) *T { return &v }

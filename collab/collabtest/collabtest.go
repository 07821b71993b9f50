// Package collabtest provides in-memory collaborators for tests and local
// runs. Every fake is safe for concurrent use and records what it was asked
// to do.
package collabtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"github.com/realsocial/real/collab"
	"github.com/realsocial/real/moderation"
)

// Fakes bundles one fake per collaborator.
type Fakes struct {
	Identity *Identity
	Apple    *Verifier
	Google   *Verifier
	Uploads  *Blobs
	Search   *Search
	Push     *Push
	Gateway  *Gateway
	Secrets  *Secrets
	BadWords *moderation.BadWords
	AppStore *AppStore
}

// New returns empty fakes.
func New() *Fakes {
	return &Fakes{
		Identity: NewIdentity(),
		Apple:    &Verifier{Tokens: map[string]string{}},
		Google:   &Verifier{Tokens: map[string]string{}},
		Uploads:  &Blobs{Objects: map[string][]byte{}},
		Search:   &Search{Docs: map[string]map[string]any{}},
		Push:     &Push{},
		Gateway:  &Gateway{},
		Secrets:  &Secrets{Values: map[string]json.RawMessage{}},
		BadWords: moderation.NewBadWords(),
		AppStore: &AppStore{Receipts: map[string]*collab.Receipt{}},
	}
}

// Set exposes the fakes as a collaborator set, with the real image
// processor.
func (f *Fakes) Set() collab.Set {
	return collab.Set{
		Identity: f.Identity,
		Federated: map[string]collab.FederatedVerifier{
			collab.ProviderApple:  f.Apple,
			collab.ProviderGoogle: f.Google,
		},
		Uploads:  f.Uploads,
		Search:   f.Search,
		Push:     f.Push,
		Gateway:  f.Gateway,
		Secrets:  f.Secrets,
		BadWords: f.BadWords,
		AppStore: f.AppStore,
		Images:   collab.NewImagingProcessor(),
	}
}

// Identity is an in-memory IdentityStore.
type Identity struct {
	mu      sync.Mutex
	users   map[string]map[string]string
	aliases map[string]string
}

func NewIdentity() *Identity {
	return &Identity{users: map[string]map[string]string{}, aliases: map[string]string{}}
}

func aliasKey(attr, value string) string {
	return attr + "=" + strings.ToLower(value)
}

var aliasAttrs = []string{collab.AttrEmail, collab.AttrPhone, collab.AttrPreferredUsername}

// setLocked applies attrs, claiming aliases for alias attributes.
func (f *Identity) setLocked(userID string, attrs map[string]string) error {
	for _, a := range aliasAttrs {
		if v, ok := attrs[a]; ok {
			if owner, taken := f.aliases[aliasKey(a, v)]; taken && owner != userID {
				return fmt.Errorf("%w: %s", collab.ErrAliasTaken, a)
			}
		}
	}
	user := f.users[userID]
	for k, v := range attrs {
		if old, ok := user[k]; ok && containsAttr(k) {
			delete(f.aliases, aliasKey(k, old))
		}
		user[k] = v
		if containsAttr(k) {
			f.aliases[aliasKey(k, v)] = userID
		}
	}
	return nil
}

func containsAttr(attr string) bool {
	for _, a := range aliasAttrs {
		if a == attr {
			return true
		}
	}
	return false
}

func (f *Identity) CreateVerifiedUser(_ context.Context, userID string, attrs map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[userID]; ok {
		return collab.ErrUserExists
	}
	f.users[userID] = map[string]string{}
	if err := f.setLocked(userID, attrs); err != nil {
		delete(f.users, userID)
		return err
	}
	if _, ok := attrs[collab.AttrEmail]; ok {
		f.users[userID][collab.AttrEmailVerified] = "true"
	}
	if _, ok := attrs[collab.AttrPhone]; ok {
		f.users[userID][collab.AttrPhoneVerified] = "true"
	}
	return nil
}

// AddUser registers a user as if they had signed up directly.
func (f *Identity) AddUser(userID string, attrs map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[userID] = map[string]string{}
	if err := f.setLocked(userID, attrs); err != nil {
		panic(err)
	}
}

func (f *Identity) SetAttributes(_ context.Context, userID string, attrs map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[userID]; !ok {
		return collab.ErrNotFound
	}
	return f.setLocked(userID, attrs)
}

func (f *Identity) GetAttributes(_ context.Context, userID string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return nil, collab.ErrNotFound
	}
	out := make(map[string]string, len(user))
	for k, v := range user {
		out[k] = v
	}
	return out, nil
}

func (f *Identity) VerifyAttribute(ctx context.Context, userID, attr string) error {
	return f.SetAttributes(ctx, userID, map[string]string{attr + "_verified": "true"})
}

func (f *Identity) DeleteUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return collab.ErrNotFound
	}
	for _, a := range aliasAttrs {
		if v, ok := user[a]; ok {
			delete(f.aliases, aliasKey(a, v))
		}
	}
	delete(f.users, userID)
	return nil
}

func (f *Identity) ClaimUsername(ctx context.Context, userID, username string) error {
	return f.SetAttributes(ctx, userID, map[string]string{collab.AttrPreferredUsername: strings.ToLower(username)})
}

// Has reports whether the user exists.
func (f *Identity) Has(userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.users[userID]
	return ok
}

// Verifier accepts the tokens it maps to emails.
type Verifier struct {
	mu     sync.Mutex
	Tokens map[string]string
}

func (f *Verifier) VerifyTokenForEmail(_ context.Context, token string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email, ok := f.Tokens[token]
	if !ok {
		return "", collab.ErrInvalidToken
	}
	return email, nil
}

// Blobs is an in-memory BlobStore.
type Blobs struct {
	mu      sync.Mutex
	Objects map[string][]byte
}

func (f *Blobs) Put(_ context.Context, key string, body []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Objects[key] = bytes.Clone(body)
	return nil
}

func (f *Blobs) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.Objects[key]
	if !ok {
		return nil, collab.ErrNotFound
	}
	return bytes.Clone(data), nil
}

func (f *Blobs) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Objects, key)
	return nil
}

func (f *Blobs) Copy(_ context.Context, src, dst string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.Objects[src]
	if !ok {
		return collab.ErrNotFound
	}
	f.Objects[dst] = bytes.Clone(data)
	return nil
}

func (f *Blobs) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.Objects[key]
	return ok, nil
}

func (f *Blobs) ListPrefixes(_ context.Context, prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[string]bool{}
	for key := range f.Objects {
		rest, ok := strings.CutPrefix(key, prefix)
		if !ok {
			continue
		}
		if i := strings.Index(rest, "/"); i >= 0 {
			seen[prefix+rest[:i+1]] = true
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

func (f *Blobs) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://blobs.test/%s?op=get&ttl=%d", key, int(ttl.Seconds())), nil
}

func (f *Blobs) PresignPut(_ context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://blobs.test/%s?op=put&ttl=%d", key, int(ttl.Seconds())), nil
}

// Keys returns the stored keys in order.
func (f *Blobs) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.Objects))
	for k := range f.Objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Search is an in-memory SearchIndex keyed by "kind/id".
type Search struct {
	mu   sync.Mutex
	Docs map[string]map[string]any
}

func (f *Search) Put(_ context.Context, kind, id string, doc map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Docs[kind+"/"+id] = doc
	return nil
}

func (f *Search) Delete(_ context.Context, kind, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Docs, kind+"/"+id)
	return nil
}

// Doc returns the indexed document, or nil.
func (f *Search) Doc(kind, id string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Docs[kind+"/"+id]
}

// PushCall is one recorded push operation.
type PushCall struct {
	Op      string
	UserID  string
	Channel string
	Address string
	Message collab.APNSMessage
}

// Push records push operations.
type Push struct {
	mu    sync.Mutex
	calls []PushCall
}

func (f *Push) record(c PushCall) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return nil
}

func (f *Push) UpdateEndpoint(_ context.Context, userID, channel, address string) error {
	return f.record(PushCall{Op: "update", UserID: userID, Channel: channel, Address: address})
}

func (f *Push) DeleteEndpoint(_ context.Context, userID, channel string) error {
	return f.record(PushCall{Op: "delete", UserID: userID, Channel: channel})
}

func (f *Push) EnableUserEndpoints(_ context.Context, userID string) error {
	return f.record(PushCall{Op: "enable", UserID: userID})
}

func (f *Push) DisableUserEndpoints(_ context.Context, userID string) error {
	return f.record(PushCall{Op: "disable", UserID: userID})
}

func (f *Push) DeleteUserEndpoints(_ context.Context, userID string) error {
	return f.record(PushCall{Op: "deleteAll", UserID: userID})
}

func (f *Push) SendAPNS(_ context.Context, userID string, msg collab.APNSMessage) error {
	return f.record(PushCall{Op: "apns", UserID: userID, Channel: "APNS", Message: msg})
}

// Calls returns the recorded calls with the given op, or all with "".
func (f *Push) Calls(op string) []PushCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []PushCall
	for _, c := range f.calls {
		if op == "" || c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// GatewayCall is one recorded mutation.
type GatewayCall struct {
	Mutation  string
	Variables map[string]any
}

// Gateway records mutations.
type Gateway struct {
	mu    sync.Mutex
	calls []GatewayCall
}

func (f *Gateway) Send(_ context.Context, mutation string, variables map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, GatewayCall{Mutation: mutation, Variables: variables})
	return nil
}

// Calls returns the recorded mutations.
func (f *Gateway) Calls() []GatewayCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]GatewayCall(nil), f.calls...)
}

// Secrets is an in-memory SecretsStore.
type Secrets struct {
	mu     sync.Mutex
	Values map[string]json.RawMessage
}

func (f *Secrets) Get(_ context.Context, name string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.Values[name]
	if !ok {
		return nil, collab.ErrNotFound
	}
	return v, nil
}

// AppStore verifies the receipts it knows.
type AppStore struct {
	mu       sync.Mutex
	Receipts map[string]*collab.Receipt
}

func (f *AppStore) VerifyReceipt(_ context.Context, receiptData string, _ bool) (*collab.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.Receipts[receiptData]
	if !ok {
		return nil, collab.ErrInvalidToken
	}
	return r, nil
}

// JPEG returns a w×h JPEG filled with c.
func JPEG(w, h int, c color.Color) []byte {
	img := imaging.New(w, h, c)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

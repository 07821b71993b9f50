package collab_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image/color"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	ciptypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/realsocial/real/collab"
	"github.com/realsocial/real/collab/collabtest"
	"github.com/realsocial/real/errs"
	"github.com/realsocial/real/model"
)

type mockS3 struct {
	mock.Mock
	collab.S3API
}

func (m *mockS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	args := m.Called(aws.ToString(in.Key))
	out, _ := args.Get(0).(*s3.HeadObjectOutput)
	return out, args.Error(1)
}

func (m *mockS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(aws.ToString(in.Key))
	out, _ := args.Get(0).(*s3.GetObjectOutput)
	return out, args.Error(1)
}

func TestS3BlobStore_Exists(t *testing.T) {
	m := &mockS3{}
	m.On("HeadObject", "present").Return(&s3.HeadObjectOutput{}, nil)
	m.On("HeadObject", "absent").Return(nil, &s3types.NotFound{})
	m.On("HeadObject", "broken").Return(nil, errors.New("boom"))
	b := collab.NewS3BlobStoreWith(m, nil, "bucket")
	ctx := context.Background()

	ok, err := b.Exists(ctx, "present")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Exists(ctx, "absent")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = b.Exists(ctx, "broken")
	assert.True(t, errs.Is(err, errs.Collaborator))
	m.AssertExpectations(t)
}

func TestS3BlobStore_Get(t *testing.T) {
	m := &mockS3{}
	m.On("GetObject", "k").Return(&s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("data"))}, nil)
	m.On("GetObject", "missing").Return(nil, &s3types.NoSuchKey{})
	b := collab.NewS3BlobStoreWith(m, nil, "bucket")

	data, err := b.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))

	_, err = b.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, collab.ErrNotFound)
}

type mockEvents struct {
	mock.Mock
}

func (m *mockEvents) PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	args := m.Called(in)
	out, _ := args.Get(0).(*eventbridge.PutEventsOutput)
	return out, args.Error(1)
}

func TestSearchIndex_PublishesDocument(t *testing.T) {
	m := &mockEvents{}
	m.On("PutEvents", mock.MatchedBy(func(in *eventbridge.PutEventsInput) bool {
		if len(in.Entries) != 1 {
			return false
		}
		e := in.Entries[0]
		var d map[string]any
		_ = json.Unmarshal([]byte(aws.ToString(e.Detail)), &d)
		return aws.ToString(e.DetailType) == "SearchDocumentPut" &&
			aws.ToString(e.Source) == collab.SourceSearch &&
			aws.ToString(e.EventBusName) == "bus" &&
			d["domain"] == "users" && d["id"] == "u1"
	})).Return(&eventbridge.PutEventsOutput{}, nil)

	s := collab.NewEventBridgeSearchIndex(m, "bus", "users", nil)
	require.NoError(t, s.Put(context.Background(), "user", "u1", map[string]any{"username": "ada"}))
	m.AssertExpectations(t)
}

func TestPushEndpoints_FailedEntries(t *testing.T) {
	m := &mockEvents{}
	m.On("PutEvents", mock.Anything).Return(&eventbridge.PutEventsOutput{
		FailedEntryCount: 1,
		Entries:          []ebtypes.PutEventsResultEntry{{ErrorCode: aws.String("Throttled")}},
	}, nil)

	p := collab.NewEventBridgePushEndpoints(m, "bus", nil)
	err := p.SendAPNS(context.Background(), "u1", collab.APNSMessage{Title: "hi"})
	assert.True(t, errs.Is(err, errs.Collaborator))
}

type mockCognito struct {
	mock.Mock
	collab.CognitoAPI
}

func (m *mockCognito) AdminCreateUser(ctx context.Context, in *cip.AdminCreateUserInput, _ ...func(*cip.Options)) (*cip.AdminCreateUserOutput, error) {
	args := m.Called(in)
	return &cip.AdminCreateUserOutput{}, args.Error(0)
}

func (m *mockCognito) AdminUpdateUserAttributes(ctx context.Context, in *cip.AdminUpdateUserAttributesInput, _ ...func(*cip.Options)) (*cip.AdminUpdateUserAttributesOutput, error) {
	args := m.Called(in)
	return &cip.AdminUpdateUserAttributesOutput{}, args.Error(0)
}

func TestCognito_CreateVerifiedUser(t *testing.T) {
	m := &mockCognito{}
	m.On("AdminCreateUser", mock.MatchedBy(func(in *cip.AdminCreateUserInput) bool {
		attrs := map[string]string{}
		for _, a := range in.UserAttributes {
			attrs[aws.ToString(a.Name)] = aws.ToString(a.Value)
		}
		return aws.ToString(in.Username) == "u1" &&
			in.MessageAction == ciptypes.MessageActionTypeSuppress &&
			attrs["email"] == "a@b.c" && attrs["email_verified"] == "true"
	})).Return(nil).Once()
	m.On("AdminCreateUser", mock.Anything).Return(&ciptypes.UsernameExistsException{}).Once()

	c := collab.NewCognitoIdentityStore(m, "pool")
	ctx := context.Background()
	require.NoError(t, c.CreateVerifiedUser(ctx, "u1", map[string]string{"email": "a@b.c"}))
	assert.ErrorIs(t, c.CreateVerifiedUser(ctx, "u1", nil), collab.ErrUserExists)
}

func TestCognito_ClaimUsernameAliasTaken(t *testing.T) {
	m := &mockCognito{}
	m.On("AdminUpdateUserAttributes", mock.MatchedBy(func(in *cip.AdminUpdateUserAttributesInput) bool {
		return len(in.UserAttributes) == 1 && aws.ToString(in.UserAttributes[0].Value) == "ada"
	})).Return(&ciptypes.AliasExistsException{})

	c := collab.NewCognitoIdentityStore(m, "pool")
	assert.ErrorIs(t, c.ClaimUsername(context.Background(), "u1", "Ada"), collab.ErrAliasTaken)
}

func signedToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = "k1"
	s, err := tok.SignedString(key)
	require.NoError(t, err)
	return s
}

func TestJWTVerifier(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []map[string]string{{
			"kid": "k1",
			"kty": "RSA",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
	}))
	defer srv.Close()

	v := collab.NewJWTVerifier(collab.JWTProvider{
		Name: "test", Issuer: "https://issuer.test", JWKSURL: srv.URL, Audiences: []string{"app"},
	}, srv.Client())
	ctx := context.Background()
	exp := time.Now().Add(time.Hour).Unix()

	email, err := v.VerifyTokenForEmail(ctx, signedToken(t, key, jwt.MapClaims{
		"iss": "https://issuer.test", "aud": "app", "exp": exp, "email": "a@b.c",
	}))
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", email)

	_, err = v.VerifyTokenForEmail(ctx, signedToken(t, key, jwt.MapClaims{
		"iss": "https://other.test", "aud": "app", "exp": exp, "email": "a@b.c",
	}))
	assert.ErrorIs(t, err, collab.ErrInvalidToken)

	_, err = v.VerifyTokenForEmail(ctx, signedToken(t, key, jwt.MapClaims{
		"iss": "https://issuer.test", "aud": "else", "exp": exp, "email": "a@b.c",
	}))
	assert.ErrorIs(t, err, collab.ErrInvalidToken)

	_, err = v.VerifyTokenForEmail(ctx, signedToken(t, key, jwt.MapClaims{
		"iss": "https://issuer.test", "aud": "app", "exp": exp,
	}))
	assert.ErrorIs(t, err, collab.ErrInvalidToken)
}

func TestAppStoreVerifier_SandboxFallback(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.URL.Path)
		if r.URL.Path == "/prod" {
			_, _ = io.WriteString(w, `{"status": 21007}`)
			return
		}
		_, _ = io.WriteString(w, `{"status": 0, "latest_receipt_info": [
			{"original_transaction_id": "t1", "product_id": "diamond", "purchase_date_ms": "1700000000000", "expires_date_ms": "1702592000000"},
			{"original_transaction_id": "t1", "product_id": "diamond", "purchase_date_ms": "1697000000000", "expires_date_ms": "1699592000000", "cancellation_date_ms": "1698000000000"}
		]}`)
	}))
	defer srv.Close()

	v := collab.NewAppStoreVerifier(srv.URL+"/prod", "secret", srv.Client(), nil)
	v.SetSandboxURL(srv.URL + "/sandbox")
	receipt, err := v.VerifyReceipt(context.Background(), "data", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"/prod", "/sandbox"}, calls)
	require.Len(t, receipt.Transactions, 2)
	latest := receipt.Latest()
	assert.Equal(t, time.UnixMilli(1702592000000).UTC(), latest.ExpiresAt)
	assert.Nil(t, latest.CancelledAt)
	assert.NotNil(t, receipt.Transactions[1].CancelledAt)
}

func TestImagingProcessor(t *testing.T) {
	p := collab.NewImagingProcessor()
	data := collabtest.JPEG(200, 100, color.RGBA{R: 200, A: 255})

	img, err := p.Process(data, model.ImageJPEG, nil, []int{64, 480})
	require.NoError(t, err)
	assert.Equal(t, 200, img.Width)
	assert.Equal(t, 100, img.Height)
	assert.Len(t, img.Thumbnails, 2)
	require.NotEmpty(t, img.Colors)
	assert.InDelta(t, 200, int(img.Colors[0].R), 24)

	cropped, err := p.Process(data, model.ImageJPEG, &model.Crop{LowerRight: model.Point{X: 50, Y: 50}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 50, cropped.Width)

	_, err = p.Process(data, model.ImageJPEG, &model.Crop{LowerRight: model.Point{X: 500, Y: 50}}, nil)
	assert.ErrorIs(t, err, collab.ErrInvalidCrop)

	_, err = p.Process(data, model.ImageHEIC, nil, nil)
	assert.ErrorIs(t, err, collab.ErrUnsupportedFormat)

	_, err = p.Process([]byte("not an image"), model.ImageJPEG, nil, nil)
	assert.ErrorIs(t, err, collab.ErrUnsupportedFormat)
}

func TestGetSecretInto(t *testing.T) {
	f := collabtest.New()
	f.Secrets.Values["appstore"] = json.RawMessage(`{"sharedSecret": "s3cr3t"}`)
	var v struct {
		SharedSecret string `json:"sharedSecret"`
	}
	require.NoError(t, collab.GetSecretInto(context.Background(), f.Secrets, "appstore", &v))
	assert.Equal(t, "s3cr3t", v.SharedSecret)
	assert.ErrorIs(t, collab.GetSecretInto(context.Background(), f.Secrets, "none", &v), collab.ErrNotFound)
}

func TestFakeIdentity_Aliases(t *testing.T) {
	f := collabtest.NewIdentity()
	ctx := context.Background()
	require.NoError(t, f.CreateVerifiedUser(ctx, "u1", map[string]string{collab.AttrEmail: "a@b.c"}))
	assert.ErrorIs(t, f.CreateVerifiedUser(ctx, "u2", map[string]string{collab.AttrEmail: "A@B.C"}), collab.ErrAliasTaken)
	assert.False(t, f.Has("u2"))

	require.NoError(t, f.ClaimUsername(ctx, "u1", "Ada"))
	f.AddUser("u2", nil)
	assert.ErrorIs(t, f.ClaimUsername(ctx, "u2", "ada"), collab.ErrAliasTaken)
	require.NoError(t, f.ClaimUsername(ctx, "u1", "ada2"))
	require.NoError(t, f.ClaimUsername(ctx, "u2", "ada"))
}

package collab

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
)

// CognitoAPI is the subset of the Cognito user-pool client used here.
type CognitoAPI interface {
	AdminCreateUser(ctx context.Context, params *cip.AdminCreateUserInput, optFns ...func(*cip.Options)) (*cip.AdminCreateUserOutput, error)
	AdminUpdateUserAttributes(ctx context.Context, params *cip.AdminUpdateUserAttributesInput, optFns ...func(*cip.Options)) (*cip.AdminUpdateUserAttributesOutput, error)
	AdminGetUser(ctx context.Context, params *cip.AdminGetUserInput, optFns ...func(*cip.Options)) (*cip.AdminGetUserOutput, error)
	AdminDeleteUser(ctx context.Context, params *cip.AdminDeleteUserInput, optFns ...func(*cip.Options)) (*cip.AdminDeleteUserOutput, error)
}

// CognitoIdentityStore is an IdentityStore over a Cognito user pool whose
// usernames are our user ids.
type CognitoIdentityStore struct {
	client     CognitoAPI
	userPoolID string
}

func NewCognitoIdentityStore(client CognitoAPI, userPoolID string) *CognitoIdentityStore {
	return &CognitoIdentityStore{client: client, userPoolID: userPoolID}
}

func toAttributeTypes(attrs map[string]string) []types.AttributeType {
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]types.AttributeType, 0, len(attrs))
	for _, name := range names {
		out = append(out, types.AttributeType{Name: aws.String(name), Value: aws.String(attrs[name])})
	}
	return out
}

// cognitoError maps Cognito exceptions onto the package sentinels.
func cognitoError(err error) error {
	var notFound *types.UserNotFoundException
	var exists *types.UsernameExistsException
	var alias *types.AliasExistsException
	switch {
	case err == nil:
		return nil
	case errors.As(err, &notFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.As(err, &exists):
		return fmt.Errorf("%w: %v", ErrUserExists, err)
	case errors.As(err, &alias):
		return fmt.Errorf("%w: %v", ErrAliasTaken, err)
	}
	return wrap("cognito", err)
}

// CreateVerifiedUser creates the user without an invitation, marking any
// email or phone number it carries as verified.
func (c *CognitoIdentityStore) CreateVerifiedUser(ctx context.Context, userID string, attrs map[string]string) error {
	all := make(map[string]string, len(attrs)+2)
	for k, v := range attrs {
		all[k] = v
	}
	if _, ok := attrs[AttrEmail]; ok {
		all[AttrEmailVerified] = "true"
	}
	if _, ok := attrs[AttrPhone]; ok {
		all[AttrPhoneVerified] = "true"
	}
	_, err := c.client.AdminCreateUser(ctx, &cip.AdminCreateUserInput{
		UserPoolId:     aws.String(c.userPoolID),
		Username:       aws.String(userID),
		MessageAction:  types.MessageActionTypeSuppress,
		UserAttributes: toAttributeTypes(all),
	})
	return cognitoError(err)
}

func (c *CognitoIdentityStore) SetAttributes(ctx context.Context, userID string, attrs map[string]string) error {
	_, err := c.client.AdminUpdateUserAttributes(ctx, &cip.AdminUpdateUserAttributesInput{
		UserPoolId:     aws.String(c.userPoolID),
		Username:       aws.String(userID),
		UserAttributes: toAttributeTypes(attrs),
	})
	return cognitoError(err)
}

func (c *CognitoIdentityStore) GetAttributes(ctx context.Context, userID string) (map[string]string, error) {
	out, err := c.client.AdminGetUser(ctx, &cip.AdminGetUserInput{
		UserPoolId: aws.String(c.userPoolID),
		Username:   aws.String(userID),
	})
	if err != nil {
		return nil, cognitoError(err)
	}
	attrs := make(map[string]string, len(out.UserAttributes))
	for _, a := range out.UserAttributes {
		attrs[aws.ToString(a.Name)] = aws.ToString(a.Value)
	}
	return attrs, nil
}

func (c *CognitoIdentityStore) VerifyAttribute(ctx context.Context, userID, attr string) error {
	var verified string
	switch attr {
	case AttrEmail:
		verified = AttrEmailVerified
	case AttrPhone:
		verified = AttrPhoneVerified
	default:
		return fmt.Errorf("attribute %q cannot be verified", attr)
	}
	return c.SetAttributes(ctx, userID, map[string]string{verified: "true"})
}

func (c *CognitoIdentityStore) DeleteUser(ctx context.Context, userID string) error {
	_, err := c.client.AdminDeleteUser(ctx, &cip.AdminDeleteUserInput{
		UserPoolId: aws.String(c.userPoolID),
		Username:   aws.String(userID),
	})
	return cognitoError(err)
}

func (c *CognitoIdentityStore) ClaimUsername(ctx context.Context, userID, username string) error {
	return c.SetAttributes(ctx, userID, map[string]string{AttrPreferredUsername: strings.ToLower(username)})
}

package arm

import (
	"context"
	"errors"
	"net/http"

	"github.com/LukaszStem/azure-cli/internal/backend"
)

// ProvidersAPIVersion is used for resource provider registration calls.
const ProvidersAPIVersion = "2017-05-10"

// Registrar registers resource providers for the client's subscription.
type Registrar struct {
	Client *Client
}

func (r Registrar) Register(ctx context.Context, namespace string) error {
	_, err := r.Client.http.Do(ctx, http.MethodPost, r.Client.SubscriptionPath("providers", namespace, "register"), query(ProvidersAPIVersion), nil)
	return err
}

func (r Registrar) RegistrationState(ctx context.Context, namespace string) (string, error) {
	resp, err := r.Client.http.Do(ctx, http.MethodGet, r.Client.SubscriptionPath("providers", namespace), query(ProvidersAPIVersion), nil)
	if err != nil {
		return "", err
	}
	var provider struct {
		RegistrationState string `json:"registrationState"`
	}
	if err := resp.Decode(&provider); err != nil {
		return "", err
	}
	return provider.RegistrationState, nil
}

func isNotFound(err error) bool {
	var be *backend.Error
	return errors.As(err, &be) && be.StatusCode == http.StatusNotFound
}

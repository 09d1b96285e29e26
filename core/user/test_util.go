package user

import (
	"context"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
)

type serviceMock struct {
	service
}

// NewServiceMock returns a Service whose emails are sent synchronously.
func NewServiceMock(conf *core.Config, repo Repository, mailSvc core.EmailService) Service {
	configureTokens(conf)
	return &serviceMock{
		service: service{
			repo:    repo,
			mailSvc: mailSvc,
		},
	}
}

func (svc *serviceMock) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		return err
	}
	// run synchronously
	msg := passwordResetMessage(usr)
	svc.mailSvc.SendMessages(msg)
	return nil
}

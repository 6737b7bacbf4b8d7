package service

import (
	"fmt"
	"time"

	"github.com/fsdevblog/peerinvest/internal/service/psswd"
	"github.com/fsdevblog/peerinvest/pkg/uow"
	"github.com/sirupsen/logrus"
)

type AppServices struct {
	UserService        *UserService
	UserDetailsService *UserDetailsService
	PackageService     *PackageService
	Inventory          *PackageInventory
	Ledger             *InvestmentLedger
	Lifecycle          *InvestmentLifecycle
	PayoutService      *PayoutService
}

type FactoryArgs struct {
	JWTSecret   []byte
	TokenExpire time.Duration
	AdminEmails []string
	MailFrom    string
	Gateway     PaymentGateway
	Notifier    Notifier
	Cache       PackageCache
	Logger      *logrus.Logger
}

func Factory(unitOfWork uow.UOW, args FactoryArgs) (*AppServices, error) {
	userService, userServiceErr := NewUserService(unitOfWork, args.JWTSecret, psswd.PasswordHash{})
	if userServiceErr != nil {
		return nil, fmt.Errorf("service factory: %s", userServiceErr.Error())
	}
	userService.SetTokenExpire(args.TokenExpire).SetAdminEmails(args.AdminEmails)

	detailsService, detailsServiceErr := NewUserDetailsService(unitOfWork)
	if detailsServiceErr != nil {
		return nil, fmt.Errorf("service factory: %s", detailsServiceErr.Error())
	}

	packageService, packageServiceErr := NewPackageService(unitOfWork, args.Cache, args.Logger)
	if packageServiceErr != nil {
		return nil, fmt.Errorf("service factory: %s", packageServiceErr.Error())
	}

	inventory, inventoryErr := NewPackageInventory(unitOfWork, args.Cache, args.Logger)
	if inventoryErr != nil {
		return nil, fmt.Errorf("service factory: %s", inventoryErr.Error())
	}

	ledger, ledgerErr := NewInvestmentLedger(unitOfWork)
	if ledgerErr != nil {
		return nil, fmt.Errorf("service factory: %s", ledgerErr.Error())
	}

	lifecycle, lifecycleErr := NewInvestmentLifecycle(InvestmentLifecycleArgs{
		UOW:       unitOfWork,
		Inventory: inventory,
		Ledger:    ledger,
		Gateway:   args.Gateway,
		Notifier:  args.Notifier,
		MailFrom:  args.MailFrom,
		Logger:    args.Logger,
	})
	if lifecycleErr != nil {
		return nil, fmt.Errorf("service factory: %s", lifecycleErr.Error())
	}

	payoutService, payoutServiceErr := NewPayoutService(unitOfWork, ledger)
	if payoutServiceErr != nil {
		return nil, fmt.Errorf("service factory: %s", payoutServiceErr.Error())
	}

	return &AppServices{
		UserService:        userService,
		UserDetailsService: detailsService,
		PackageService:     packageService,
		Inventory:          inventory,
		Ledger:             ledger,
		Lifecycle:          lifecycle,
		PayoutService:      payoutService,
	}, nil
}

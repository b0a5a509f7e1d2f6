package box

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fnothaft/cgcloud/internal/image"
)

func (b *Box) SyncPackageRepos(ctx context.Context) error {
	_, err := b.Sudo(ctx, b.family.syncCommand())
	return err
}

func (b *Box) UpgradeInstalledPackages(ctx context.Context) error {
	_, err := b.Sudo(ctx, b.family.upgradeCommand())
	return err
}

func (b *Box) InstallPackages(ctx context.Context, packages ...string) error {
	if len(packages) == 0 {
		return nil
	}
	_, err := b.Sudo(ctx, b.family.installCommand(packages))
	return err
}

// DebconfSetSelections preseeds answers to package configuration questions.
// Only Ubuntu boxes support it.
func (b *Box) DebconfSetSelections(ctx context.Context, selections ...string) error {
	if b.role.Family != image.Ubuntu {
		return fmt.Errorf("debconf is not available on %s boxes", b.role.Family)
	}
	for _, s := range selections {
		if strings.Contains(s, `"`) {
			return errors.New("double quotes in debconf selections are not supported")
		}
	}
	_, err := b.Sudo(ctx, fmt.Sprintf(`debconf-set-selections <<< "%s"`, strings.Join(selections, "\n")))
	return err
}

// RegisterInitScript makes script run at boot under the given name.
func (b *Box) RegisterInitScript(ctx context.Context, name, script string) error {
	if err := b.family.registerInitScript(ctx, b, name, script); err != nil {
		return fmt.Errorf("cannot register init script %s: %w", name, err)
	}
	return nil
}

// Setup refreshes the package index, upgrades the installed packages and
// installs the role's packages.
func (b *Box) Setup(ctx context.Context) error {
	b.log.Info("Setting up packages")
	if err := b.SyncPackageRepos(ctx); err != nil {
		return err
	}
	if err := b.UpgradeInstalledPackages(ctx); err != nil {
		return err
	}
	return b.InstallPackages(ctx, b.role.Packages...)
}

package cmd

import (
	"fmt"

	"github.com/bitswalk/kforge/src/common/cli"
	"github.com/bitswalk/kforge/src/kforge/internal/output"
	"github.com/bitswalk/kforge/src/kforge/layout"
	"github.com/bitswalk/kforge/src/kforge/publish"
	"github.com/bitswalk/kforge/src/kforge/storage"
	"github.com/spf13/cobra"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Upload built artifacts to the configured storage",
	Long: `Uploads the final artifacts of a variant, each with a .sha256 checksum
file, to the local or S3-compatible storage configured under "storage".
Objects whose stored size and checksum already match are not uploaded again
unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: runPublish,
}

var publishListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the published objects of a variant",
	Args:  cobra.NoArgs,
	RunE:  runPublishList,
}

var publishRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Delete the published objects of a variant",
	Args:  cobra.NoArgs,
	RunE:  runPublishRemove,
}

func init() {
	pf := publishCmd.PersistentFlags()
	pf.Var(new(layout.Variant), "variant", "Variant to publish (default release)")
	pf.String("prefix", "", "Object key prefix")
	pf.String("storage", "", "Storage backend: local or s3 (default from configuration)")

	publishCmd.Flags().Bool("compress", false, "Upload xz-compressed artifacts")
	publishCmd.Flags().Bool("force", false, "Upload even when the stored object is up to date")
	publishCmd.Flags().Duration("presign", 0, "Print download URLs valid for this long (S3 only)")

	_ = v.BindPFlag("storage.type", pf.Lookup("storage"))
	_ = v.BindPFlag("publish.prefix", pf.Lookup("prefix"))
	_ = cli.BindFlag(v, publishCmd, "presign", "publish.presign_expiry")

	publishCmd.AddCommand(publishListCmd)
	publishCmd.AddCommand(publishRemoveCmd)
}

// storageConfig returns the configured storage backend settings
func storageConfig() storage.Config {
	return storage.Config{
		Type: v.GetString("storage.type"),
		Local: storage.LocalConfig{
			BasePath: v.GetString("storage.local.base_path"),
		},
		S3: storage.S3Config{
			Endpoint:        v.GetString("storage.s3.endpoint"),
			Region:          v.GetString("storage.s3.region"),
			Bucket:          v.GetString("storage.s3.bucket"),
			AccessKeyID:     v.GetString("storage.s3.access_key_id"),
			SecretAccessKey: v.GetString("storage.s3.secret_access_key"),
			UsePathStyle:    v.GetBool("storage.s3.use_path_style"),
		},
	}
}

// newPublisher opens the configured backend and checks that it is reachable
func newPublisher(cmd *cobra.Command, opts publish.Options) (*publish.Publisher, storage.Backend, error) {
	l, err := loadLayout()
	if err != nil {
		return nil, nil, err
	}
	backend, err := storage.New(storageConfig())
	if err != nil {
		return nil, nil, err
	}
	if err := backend.Ping(cmd.Context()); err != nil {
		return nil, nil, err
	}
	opts.Prefix = v.GetString("publish.prefix")
	return publish.New(l, backend, opts), backend, nil
}

func runPublish(cmd *cobra.Command, args []string) error {
	format, err := getOutputFormat()
	if err != nil {
		return err
	}
	compress, _ := cmd.Flags().GetBool("compress")
	force, _ := cmd.Flags().GetBool("force")

	p, backend, err := newPublisher(cmd, publish.Options{
		Compress:      compress,
		Force:         force,
		PresignExpiry: v.GetDuration("publish.presign_expiry"),
	})
	if err != nil {
		return err
	}
	published, err := p.Publish(cmd.Context(), variantFlag(cmd, layout.Release))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	return output.Print(out, format, published, func() {
		rows := make([][]string, len(published))
		for i, pub := range published {
			status := "uploaded"
			if pub.Skipped {
				status = "up to date"
			}
			rows[i] = []string{pub.Key, fmt.Sprintf("%d", pub.Size), status, pub.SHA256, pub.URL}
		}
		output.PrintTable(out, []string{"KEY", "SIZE", "STATUS", "SHA256", "URL"}, rows)
		fmt.Fprintf(out, "\nPublished to %s\n", backend.Location())
	})
}

func runPublishList(cmd *cobra.Command, args []string) error {
	format, err := getOutputFormat()
	if err != nil {
		return err
	}
	p, backend, err := newPublisher(cmd, publish.Options{})
	if err != nil {
		return err
	}
	objects, err := p.List(cmd.Context(), variantFlag(cmd, layout.Release))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	return output.Print(out, format, objects, func() {
		if len(objects) == 0 {
			fmt.Fprintf(out, "Nothing published in %s\n", backend.Location())
			return
		}
		rows := make([][]string, len(objects))
		for i, o := range objects {
			rows[i] = []string{o.Key, fmt.Sprintf("%d", o.Size), o.LastModified.Format("2006-01-02 15:04:05")}
		}
		output.PrintTable(out, []string{"KEY", "SIZE", "MODIFIED"}, rows)
	})
}

func runPublishRemove(cmd *cobra.Command, args []string) error {
	p, backend, err := newPublisher(cmd, publish.Options{})
	if err != nil {
		return err
	}
	removed, err := p.Remove(cmd.Context(), variantFlag(cmd, layout.Release))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d objects from %s\n", len(removed), backend.Location())
	return nil
}

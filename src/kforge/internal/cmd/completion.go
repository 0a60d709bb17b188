package cmd

import (
	"github.com/bitswalk/kforge/src/kforge/layout"
	"github.com/bitswalk/kforge/src/kforge/run"
	"github.com/spf13/cobra"
)

// completionVariants completes build variant names
func completionVariants(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return []string{
		string(layout.Release) + "\tOptimized kernel at kernel.elf",
		string(layout.Debug) + "\tKernel with debug info and rootfs image",
	}, cobra.ShellCompDirectiveNoFileComp
}

// completionRunModes completes the modes accepted by run --mode
func completionRunModes(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return []string{
		string(run.ModeNormal) + "\tConsole on stdio",
		string(run.ModeLogging) + "\tTrace interrupts and guest errors to build/qemu.log",
		string(run.ModeDebugHalt) + "\tStart halted with a gdb stub",
	}, cobra.ShellCompDirectiveNoFileComp
}

// completionOutputFormat completes the --output flag
func completionOutputFormat(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return []string{"table", "json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
}

// completionStorageTypes completes storage backend types
func completionStorageTypes(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return []string{"local", "s3"}, cobra.ShellCompDirectiveNoFileComp
}

func registerCompletions() {
	_ = rootCmd.RegisterFlagCompletionFunc("output", completionOutputFormat)

	for _, c := range []*cobra.Command{buildCmd, runCmd, debugCmd, gdbinitCmd, publishCmd} {
		_ = c.RegisterFlagCompletionFunc("variant", completionVariants)
	}
	_ = runCmd.RegisterFlagCompletionFunc("mode", completionRunModes)
	_ = publishCmd.RegisterFlagCompletionFunc("storage", completionStorageTypes)
}

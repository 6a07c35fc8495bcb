// Package cli implements the debdeploy command-line interface.
//
// Each cobra command parses its flags into an options struct and hands it to
// a plain function (buildCommand, deployCommand, hostsCommand, Init) that does
// the work through internal/pipeline. Those functions take their writers as
// arguments, which is how the tests drive them.
//
//	debdeploy build    - run the packaging toolchain once
//	debdeploy deploy   - install the existing package on every host
//	debdeploy all      - build, then deploy
//	debdeploy hosts    - show how host names resolve
//	debdeploy init     - write a .debdeploy.yaml with defaults
//
// Global flags (--config, --ssh-config, --verbose, --no-color) live on the
// root command. Exit status is 0 on full success and 1 otherwise.
package cli

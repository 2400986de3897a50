package cloudinit

import (
	_ "embed"
	"strings"
)

//go:embed scripts/install_doca.sh
var docaInstallScript string

const (
	userDataLog   = "/var/log/cloud-init-userdata.log"
	deploymentLog = "/var/log/maas-deployment.log"
)

// logged appends the user-data log tee to a shell command
func logged(cmd string) string {
	return cmd + " 2>&1 | tee -a " + userDataLog
}

// announce echoes msg into both deployment logs
func announce(msg string) string {
	return `echo "` + msg + `" | tee -a ` + userDataLog + " " + deploymentLog
}

func header(title string) string {
	return `echo "=== ` + title + ` ===" | tee -a ` + userDataLog
}

// enhancement is a tag-triggered addition to the base cloud-config
type enhancement struct {
	description string
	matches     func(tags []string) bool
	packages    func(rocky bool) []string
	runcmd      []string
	writeFiles  []WriteFile
}

// Content is what a set of enhancements contributes to a cloud-config
type Content struct {
	Packages   []string
	Runcmd     []string
	WriteFiles []WriteFile
}

// Empty reports whether nothing was contributed
func (c Content) Empty() bool {
	return len(c.Packages) == 0 && len(c.Runcmd) == 0 && len(c.WriteFiles) == 0
}

func hasTag(names ...string) func([]string) bool {
	return func(tags []string) bool {
		for _, tag := range tags {
			for _, name := range names {
				if tag == name {
					return true
				}
			}
		}
		return false
	}
}

func tagContains(match func(lower string) bool) func([]string) bool {
	return func(tags []string) bool {
		for _, tag := range tags {
			if match(strings.ToLower(tag)) {
				return true
			}
		}
		return false
	}
}

func byOS(rockyPkgs, ubuntuPkgs []string) func(bool) []string {
	return func(rocky bool) []string {
		if rocky {
			return rockyPkgs
		}
		return ubuntuPkgs
	}
}

func always(pkgs ...string) func(bool) []string {
	return func(bool) []string { return pkgs }
}

var buildTools = byOS(
	[]string{"gcc", "kernel-devel", "kernel-headers"},
	[]string{"build-essential", "linux-headers-generic"},
)

// enhancements are evaluated in order; output order is stable for a given tag set
var enhancements = []enhancement{
	{
		description: "CPU performance optimizations (performance governor)",
		matches:     hasTag("high-cpu"),
		packages:    byOS([]string{"kernel-tools"}, []string{"cpufrequtils", "linux-tools-generic"}),
		runcmd: []string{
			header("High-CPU Optimizations"),
			logged(`echo "performance" | tee /sys/devices/system/cpu/cpu*/cpufreq/scaling_governor`),
			announce("High-CPU optimizations applied"),
		},
	},
	{
		description: "Memory optimizations (swappiness, cache pressure)",
		matches:     hasTag("high-memory"),
		runcmd: []string{
			header("High-Memory Optimizations"),
			logged(`echo "vm.swappiness=1" >> /etc/sysctl.conf`),
			logged(`echo "vm.vfs_cache_pressure=50" >> /etc/sysctl.conf`),
			announce("High-memory optimizations applied"),
		},
	},
	{
		description: "AMD64 microcode updates",
		matches:     hasTag("amd64-arch"),
		packages:    always("amd64-microcode"),
		runcmd: []string{
			header("AMD64 Architecture Optimizations"),
			announce("AMD64 microcode updates enabled"),
		},
	},
	{
		description: "Virtual machine guest tools",
		matches:     hasTag("virtual"),
		packages:    always("qemu-guest-agent", "open-vm-tools"),
		runcmd: []string{
			header("Virtual Machine Configuration"),
			logged("systemctl enable qemu-guest-agent"),
			announce("Virtual machine tools configured"),
		},
	},
	{
		description: "Serial console access configuration",
		matches:     hasTag("serial_console", "needs_serial_console_deploy"),
		runcmd: []string{
			header("Serial Console Configuration"),
			logged("systemctl enable serial-getty@ttyS0.service"),
			logged("systemctl start serial-getty@ttyS0.service"),
			announce("Serial console configured"),
		},
	},
	{
		description: "NVME multipath configuration",
		matches:     hasTag("nvme_core"),
		runcmd: []string{
			header("NVME Configuration"),
			announce("NVME multipath disabled as configured"),
		},
		writeFiles: []WriteFile{{Path: "/etc/modprobe.d/nvme.conf", Content: "nvme_core.multipath=N\n"}},
	},
	{
		description: "ConnectX NIC driver loading (mlx5_core, mlx5_ib)",
		matches: tagContains(func(tag string) bool {
			return strings.Contains(tag, "connectx") || strings.Contains(tag, "mellanox")
		}),
		runcmd: []string{
			header("ConnectX NIC Driver Loading"),
			logged("modprobe mlx5_core") + " || true",
			logged("modprobe mlx5_ib") + " || true",
			announce("ConnectX NIC drivers loaded"),
		},
	},
	{
		description: "DOCA installation (doca-all for Ubuntu, doca-ofed for Rocky/RHEL)",
		matches:     tagContains(func(tag string) bool { return strings.Contains(tag, "doca") }),
		packages: byOS(
			[]string{"gcc", "kernel-devel", "kernel-headers", "wget", "python3-pip", "curl", "rpm-build"},
			[]string{"build-essential", "linux-headers-generic", "wget", "python3-pip", "curl"},
		),
		runcmd: []string{
			header("DOCA Installation"),
			logged("chmod +x /tmp/install_doca.sh"),
			logged("/tmp/install_doca.sh"),
		},
		writeFiles: []WriteFile{{Path: "/tmp/install_doca.sh", Content: docaInstallScript, Permissions: "0755"}},
	},
	{
		description: "Intel NIC driver optimization",
		matches: tagContains(func(tag string) bool {
			return strings.Contains(tag, "intel") && (strings.Contains(tag, "nic") || strings.Contains(tag, "ethernet"))
		}),
		packages: buildTools,
		runcmd: []string{
			header("Intel NIC Drivers Installation"),
			logged("modprobe e1000e") + " || true",
			logged("modprobe igb") + " || true",
			logged("modprobe ixgbe") + " || true",
			logged("modprobe i40e") + " || true",
			logged("modprobe ice") + " || true",
			announce("Intel NIC drivers loaded"),
		},
	},
	{
		description: "Broadcom NIC driver support (bnxt_en, tg3)",
		matches: func(tags []string) bool {
			return hasTag("bcm57508")(tags) || tagContains(func(tag string) bool { return strings.Contains(tag, "broadcom") })(tags)
		},
		packages: func(rocky bool) []string {
			return append([]string{"ethtool"}, buildTools(rocky)...)
		},
		runcmd: []string{
			header("Broadcom NIC Drivers Installation"),
			logged("modprobe bnxt_en"),
			logged("modprobe tg3") + " || true",
			announce("Broadcom NIC drivers loaded"),
		},
	},
}

// Enhancements describes the tag-based additions that apply to a machine
func Enhancements(tags []string) []string {
	var descriptions []string
	for _, e := range enhancements {
		if e.matches(tags) {
			descriptions = append(descriptions, e.description)
		}
	}
	if len(descriptions) == 0 {
		return []string{"Standard configuration only"}
	}
	return descriptions
}

// enhancementsFor collects everything the machine's tags contribute
func enhancementsFor(tags []string, rocky bool) Content {
	var out Content
	for _, e := range enhancements {
		if !e.matches(tags) {
			continue
		}
		if e.packages != nil {
			out.Packages = append(out.Packages, e.packages(rocky)...)
		}
		out.Runcmd = append(out.Runcmd, e.runcmd...)
		out.WriteFiles = append(out.WriteFiles, e.writeFiles...)
	}
	return out
}

// Package cloudinit renders per-machine cloud-config user-data for MAAS deployments.
package cloudinit

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	maasconfig "github.com/celestiaorg/maasprov/internal/config"
	"github.com/celestiaorg/maasprov/internal/db/models"
	"github.com/celestiaorg/maasprov/internal/maas"
)

const sysctlConf = `# installed from platform cloud-init
kernel.numa_balancing=0
kernel.softlockup_all_cpu_backtrace=1
kernel.panic = 300
net.ipv4.conf.all.arp_announce = 2
net.ipv4.conf.all.arp_filter = 1
net.ipv4.conf.all.arp_ignore = 1
net.ipv4.conf.default.arp_announce = 2
net.ipv4.conf.default.arp_filter = 1
net.ipv4.conf.default.arp_ignore = 1
net.ipv4.conf.all.ignore_routes_with_linkdown = 1
net.ipv4.conf.default.ignore_routes_with_linkdown = 1
`

const sysctlPath = "/etc/sysctl.d/99-weka.conf"

var (
	ubuntuPackages = []string{
		"curl", "wget", "git", "htop", "vim", "net-tools", "openssh-server",
		"lldpd", "nvme-cli", "strace", "ltrace", "crash", "kdump-tools", "ibverbs-utils",
		"ibutils", "infiniband-diags", "screen", "tmux", "ipmitool", "rdma-core",
		"tshark", "termshark", "fio", "smartmontools", "iozone3", "atop",
	}
	rockyPackages = []string{
		"curl", "wget", "git", "htop", "vim", "net-tools", "openssh-server", "sudo", "tar", "gzip",
		"lldpd", "nvme-cli", "strace", "ltrace", "crash", "kexec-tools",
		"ibverbs-utils", "infiniband-diags", "screen", "tmux", "ipmitool", "rdma-core",
		"wireshark-cli", "fio", "smartmontools", "atop",
	}
)

// WriteFile is a cloud-config write_files entry
type WriteFile struct {
	Path        string `yaml:"path"`
	Content     string `yaml:"content"`
	Permissions string `yaml:"permissions,omitempty"`
}

// User is a cloud-config users entry
type User struct {
	Name              string      `yaml:"name"`
	PlainTextPasswd   string      `yaml:"plain_text_passwd"`
	Sudo              interface{} `yaml:"sudo"`
	Shell             string      `yaml:"shell"`
	Groups            []string    `yaml:"groups"`
	LockPasswd        bool        `yaml:"lock_passwd"`
	SSHAuthorizedKeys []string    `yaml:"ssh_authorized_keys,omitempty"`
	System            *bool       `yaml:"system,omitempty"`
	CreateUserGroup   *bool       `yaml:"create_user_group,omitempty"`
}

// Config is the rendered cloud-config document; field order is output order
type Config struct {
	Packages     []string    `yaml:"packages"`
	SSHPwauth    bool        `yaml:"ssh_pwauth"`
	DisableRoot  bool        `yaml:"disable_root"`
	Users        []User      `yaml:"users,omitempty"`
	WriteFiles   []WriteFile `yaml:"write_files"`
	Runcmd       []string    `yaml:"runcmd"`
	Hostname     string      `yaml:"hostname"`
	FinalMessage string      `yaml:"final_message"`
}

// Generator produces machine-specific user-data
type Generator struct {
	credentials *maasconfig.UserCredentials
	now         func() time.Time
}

// NewGenerator creates a generator; credentials may be nil when no deploy user is configured
func NewGenerator(credentials *maasconfig.UserCredentials) *Generator {
	return &Generator{
		credentials: credentials,
		now:         time.Now,
	}
}

// Generate renders the cloud-config for one machine. template is the operator's raw
// user-data; its "- " list items become extra runcmd entries.
func (g *Generator) Generate(machine *maas.Machine, template string, osType models.OSType) (string, error) {
	if machine == nil || machine.SystemID == "" {
		return "", errors.New("machine with a system_id is required")
	}

	rocky := osType == models.OSTypeRocky
	cfg := g.base(rocky)

	extra := enhancementsFor(machine.TagNames, rocky)
	cfg.Packages = append(cfg.Packages, extra.Packages...)
	cfg.Runcmd = append(cfg.Runcmd, extra.Runcmd...)
	cfg.WriteFiles = append(cfg.WriteFiles, extra.WriteFiles...)

	if cmds := templateCommands(template); len(cmds) > 0 {
		cfg.Runcmd = append(cfg.Runcmd, "# User-provided commands:")
		cfg.Runcmd = append(cfg.Runcmd, cmds...)
	}

	name := machine.DisplayName()
	cfg.Runcmd = append(machineCommands(machine), cfg.Runcmd...)
	cfg.Runcmd = append(cfg.Runcmd,
		announce("=== MAAS Cloud-Init Deployment Completed at $(date) ==="),
		`echo "All user-data logs saved to `+userDataLog+`" | tee -a `+deploymentLog,
		`echo "Final user verification:" | tee -a `+userDataLog,
	)
	if len(cfg.Users) > 0 {
		username := cfg.Users[0].Name
		cfg.Runcmd = append(cfg.Runcmd, fmt.Sprintf(`id %s | tee -a %s || echo "ERROR: %s user not created!" | tee -a %s`, username, userDataLog, username, userDataLog))
	} else {
		cfg.Runcmd = append(cfg.Runcmd, `echo "No user configured for this deployment" | tee -a `+userDataLog)
	}

	cfg.Hostname = hostname(machine)
	cfg.FinalMessage = fmt.Sprintf("MAAS deployment completed successfully for %s with Weka configurations", cfg.Hostname)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "#cloud-config\n")
	fmt.Fprintf(&buf, "# Auto-generated configuration for MAAS deployment\n")
	fmt.Fprintf(&buf, "# Machine: %s\n", name)
	fmt.Fprintf(&buf, "# System ID: %s\n", machine.SystemID)
	fmt.Fprintf(&buf, "# Architecture: %s\n", orUnknown(machine.Architecture))
	fmt.Fprintf(&buf, "# CPU: %s cores, Memory: %d GB\n", cpuCount(machine), memoryGB(machine))
	fmt.Fprintf(&buf, "# Machine tags: %s\n", tagList(machine.TagNames))
	fmt.Fprintf(&buf, "# Generated at: %s\n\n", g.now().Format(time.RFC3339))

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return "", fmt.Errorf("failed to encode cloud-config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to encode cloud-config: %w", err)
	}

	return buf.String(), nil
}

// base builds the OS-specific configuration shared by every machine
func (g *Generator) base(rocky bool) Config {
	cfg := Config{
		SSHPwauth:  true,
		WriteFiles: []WriteFile{{Path: sysctlPath, Content: sysctlConf}},
	}
	if rocky {
		cfg.Packages = append([]string(nil), rockyPackages...)
	} else {
		cfg.Packages = append([]string(nil), ubuntuPackages...)
	}

	osName, sshService, kdump := "Ubuntu", "ssh", "kdump-tools"
	if rocky {
		osName, sshService, kdump = "Rocky Linux", "sshd", "kdump"
	}

	cfg.Runcmd = []string{
		"mkdir -p /var/log",
		"touch " + userDataLog + " " + deploymentLog,
		"chmod 644 " + userDataLog + " " + deploymentLog,
		`echo "=== MAAS Cloud-Init Deployment Started at $(date) ===" | tee -a ` + userDataLog,
		`echo "MAAS deployment started at $(date)" | tee ` + deploymentLog,
		`echo "Configuring ` + osName + ` system..." | tee -a ` + userDataLog,
		logged("systemctl enable lldpd") + " || true",
		logged("systemctl start lldpd") + " || true",
		logged("systemctl enable "+kdump) + " || true",
		logged("systemctl enable smartd") + " || true",
		logged("systemctl start smartd") + " || true",
		logged("sysctl -p " + sysctlPath),
		`echo "Weka sysctl configuration applied" | tee -a ` + userDataLog,
		logged("systemctl enable " + sshService),
		logged("systemctl start " + sshService),
	}

	if !g.credentials.Configured() {
		cfg.Runcmd = append(cfg.Runcmd, `echo "`+osName+` base configuration completed (no user configured)" | tee -a `+userDataLog)
		return cfg
	}

	username, password := g.credentials.Username, g.credentials.Password
	user := User{
		Name:            username,
		PlainTextPasswd: password,
		Sudo:            "ALL=(ALL) NOPASSWD:ALL",
		Shell:           "/bin/bash",
		Groups:          []string{"sudo", "docker"},
	}
	if rocky {
		yes, no := true, false
		user.Sudo = []string{"ALL=(ALL) NOPASSWD:ALL"}
		user.Groups = []string{"wheel", "docker"}
		user.System = &no
		user.CreateUserGroup = &yes

		// cloud-init user creation is unreliable on some Rocky images
		cfg.Runcmd = append(cfg.Runcmd,
			fmt.Sprintf("if ! id %s >/dev/null 2>&1; then", username),
			"  "+logged("useradd -m -s /bin/bash "+username),
			"  "+logged(fmt.Sprintf(`echo "%s:%s" | chpasswd`, username, password)),
			"  "+logged("usermod -aG wheel "+username),
			fmt.Sprintf("  getent group docker >/dev/null && usermod -aG docker %s || true", username),
			"fi",
			`echo "%wheel ALL=(ALL) NOPASSWD: ALL" | tee /etc/sudoers.d/wheel`,
			"chmod 0440 /etc/sudoers.d/wheel",
		)
	}
	cfg.Users = []User{user}

	cfg.Runcmd = append(cfg.Runcmd,
		logged("id "+username)+fmt.Sprintf(` || echo "WARNING: %s user not found" | tee -a %s`, username, userDataLog),
		logged("groups "+username)+fmt.Sprintf(` || echo "WARNING: cannot check %s user groups" | tee -a %s`, username, userDataLog),
		`echo "`+osName+` base configuration completed" | tee -a `+userDataLog,
	)
	return cfg
}

// templateCommands extracts "- cmd" list items, ignoring echo and systemctl lines
func templateCommands(template string) []string {
	var cmds []string
	for _, line := range strings.Split(template, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "- ") {
			continue
		}
		if strings.Contains(line, "echo") || strings.Contains(line, "systemctl") {
			continue
		}
		cmds = append(cmds, strings.TrimPrefix(line, "- "))
	}
	return cmds
}

func machineCommands(m *maas.Machine) []string {
	return []string{
		announce("=== Machine-Specific Configuration ==="),
		announce("Machine-specific deployment for " + m.DisplayName()),
		announce("System ID: " + m.SystemID),
		announce("Architecture: " + orUnknown(m.Architecture)),
		announce("CPU Cores: " + cpuCount(m)),
		announce(fmt.Sprintf("Memory: %d GB", memoryGB(m))),
		announce("Machine Tags: " + tagList(m.TagNames)),
	}
}

func hostname(m *maas.Machine) string {
	if m.Hostname != "" {
		return m.Hostname
	}
	if m.FQDN != "" {
		return m.FQDN
	}
	id := m.SystemID
	if len(id) > 8 {
		id = id[len(id)-8:]
	}
	return "maas-" + id
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func cpuCount(m *maas.Machine) string {
	if m.CPUCount == 0 {
		return "unknown"
	}
	return fmt.Sprintf("%d", m.CPUCount)
}

// memoryGB rounds MAAS's MiB figure up to whole GiB
func memoryGB(m *maas.Machine) int {
	return (m.Memory + 1023) / 1024
}

func tagList(tags []string) string {
	if len(tags) == 0 {
		return "none"
	}
	return strings.Join(tags, ", ")
}

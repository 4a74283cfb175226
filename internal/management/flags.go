package management

import (
	"github.com/dominicfeliton/minecraft-server-script/internal/config"
)

// gameServerFlags are Aikar's G1 flags, shared by Paper, Folia and Spigot.
var gameServerFlags = []string{
	"-XX:+UseG1GC",
	"-XX:+ParallelRefProcEnabled",
	"-XX:MaxGCPauseMillis=200",
	"-XX:+UnlockExperimentalVMOptions",
	"-XX:+DisableExplicitGC",
	"-XX:+AlwaysPreTouch",
	"-XX:G1NewSizePercent=30",
	"-XX:G1MaxNewSizePercent=40",
	"-XX:G1HeapRegionSize=8M",
	"-XX:G1ReservePercent=20",
	"-XX:G1HeapWastePercent=5",
	"-XX:G1MixedGCCountTarget=4",
	"-XX:InitiatingHeapOccupancyPercent=15",
	"-XX:G1MixedGCLiveThresholdPercent=90",
	"-XX:G1RSetUpdatingPauseTimePercent=5",
	"-XX:SurvivorRatio=32",
	"-XX:+PerfDisableSharedMem",
	"-XX:MaxTenuringThreshold=1",
	"-Dusing.aikars.flags=https://mcflags.emc.gs",
	"-Daikars.new.flags=true",
}

// proxyFlags are the flags Velocity recommends for the proxy.
var proxyFlags = []string{
	"-XX:+UseG1GC",
	"-XX:G1HeapRegionSize=4M",
	"-XX:+UnlockExperimentalVMOptions",
	"-XX:+ParallelRefProcEnabled",
	"-XX:+AlwaysPreTouch",
	"-XX:MaxInlineLevel=15",
}

// gcLogFlags returns GC logging flags in the syntax the detected Java
// understands. An unknown version gets none.
func gcLogFlags(javaMajor int, known bool) []string {
	switch {
	case !known:
		return nil
	case javaMajor < 11:
		return []string{
			"-Xloggc:gc.log",
			"-verbose:gc",
			"-XX:+PrintGCDetails",
			"-XX:+PrintGCDateStamps",
			"-XX:+PrintGCTimeStamps",
			"-XX:+UseGCLogFileRotation",
			"-XX:NumberOfGCLogFiles=5",
			"-XX:GCLogFileSize=1M",
		}
	default:
		return []string{"-Xlog:gc*:logs/gc.log:time,uptime:filecount=5,filesize=1M"}
	}
}

// LaunchSpec is everything needed to build the server command line.
type LaunchSpec struct {
	Flavor    config.Flavor
	JavaCmd   string
	Xms       string
	Xmx       string
	JarPath   string
	JavaMajor int
	JavaKnown bool
}

// LaunchCommand builds the argv that runs the server.
func LaunchCommand(s LaunchSpec) []string {
	argv := []string{s.JavaCmd, "-Xms" + s.Xms, "-Xmx" + s.Xmx}
	if s.Flavor.IsProxy() {
		argv = append(argv, proxyFlags...)
	} else {
		argv = append(argv, gameServerFlags...)
	}
	argv = append(argv, gcLogFlags(s.JavaMajor, s.JavaKnown)...)
	argv = append(argv, "-jar", s.JarPath)
	if !s.Flavor.IsProxy() {
		argv = append(argv, "--nogui")
	}
	return argv
}

package nntpclient

import (
	"net"
	"net/textproto"
	"strings"
	"testing"
)

// startUpstream runs a scripted NNTP server on a loopback port. The
// handler answers one command; returning false ends the session.
func startUpstream(t *testing.T, greeting string, handler func(tc *textproto.Conn, verb string, args []string) bool) (string, int) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		tc := textproto.NewConn(conn)
		if err := tc.PrintfLine("%s", greeting); err != nil {
			return
		}
		for {
			line, err := tc.ReadLine()
			if err != nil {
				return
			}
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			verb := strings.ToUpper(fields[0])
			if verb == "QUIT" {
				tc.PrintfLine("205 goodbye")
				return
			}
			if !handler(tc, verb, fields[1:]) {
				return
			}
		}
	}()

	addr := listener.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port
}

func sendDotLines(tc *textproto.Conn, status string, lines []string) bool {
	if err := tc.PrintfLine("%s", status); err != nil {
		return false
	}
	dw := tc.DotWriter()
	for _, line := range lines {
		if _, err := dw.Write([]byte(line + "\r\n")); err != nil {
			dw.Close()
			return false
		}
	}
	return dw.Close() == nil
}

func TestGroupAndStat(t *testing.T) {
	host, port := startUpstream(t, "200 upstream ready", func(tc *textproto.Conn, verb string, args []string) bool {
		switch verb {
		case "GROUP":
			tc.PrintfLine("211 12 3 14 %s group selected", args[0])
		case "STAT":
			tc.PrintfLine("223 7 <stat@test> article retrieved")
		default:
			tc.PrintfLine("500 command not recognized")
		}
		return true
	})

	client := New(Config{Host: host, Port: port})
	if err := client.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	group, err := client.Group("alt.test")
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	want := Group{Name: "alt.test", Count: 12, First: 3, Last: 14}
	if group != want {
		t.Errorf("Group = %+v, want %+v", group, want)
	}

	number, mid, err := client.Stat("<stat@test>")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if number != 7 || mid != "<stat@test>" {
		t.Errorf("Stat = %d, %q", number, mid)
	}
}

func TestListAndArticle(t *testing.T) {
	host, port := startUpstream(t, "200 upstream ready", func(tc *textproto.Conn, verb string, args []string) bool {
		switch verb {
		case "LIST":
			return sendDotLines(tc, "215 list of newsgroups follows", []string{
				"alt.test 10 1 y",
				"alt.other 0 1 n",
			})
		case "ARTICLE":
			return sendDotLines(tc, "220 1 <a@t> All of the article follows", []string{
				"Subject: hi",
				"",
				".leading dot survives unstuffing",
				"last line",
			})
		}
		tc.PrintfLine("500 command not recognized")
		return true
	})

	client := New(Config{Host: host, Port: port})
	if err := client.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	lines, err := client.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(lines) != 2 || lines[0] != "alt.test 10 1 y" {
		t.Errorf("List = %q", lines)
	}

	article, err := client.Article("<a@t>")
	if err != nil {
		t.Fatalf("Article: %v", err)
	}
	if len(article) != 4 || article[2] != ".leading dot survives unstuffing" {
		t.Errorf("Article = %q", article)
	}
}

func TestConnectAuthenticates(t *testing.T) {
	credentials := make(chan string, 2)
	host, port := startUpstream(t, "200 upstream ready", func(tc *textproto.Conn, verb string, args []string) bool {
		switch verb {
		case "AUTHINFO":
			credentials <- args[1]
			switch strings.ToUpper(args[0]) {
			case "USER":
				tc.PrintfLine("381 More authentication information required")
			case "PASS":
				tc.PrintfLine("281 Authentication accepted")
			}
		case "GROUP":
			tc.PrintfLine("211 0 1 0 %s group selected", args[0])
		default:
			tc.PrintfLine("500 command not recognized")
		}
		return true
	})

	client := New(Config{Host: host, Port: port, Username: "alice", Password: "s3cret"})
	if err := client.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	if user, pass := <-credentials, <-credentials; user != "alice" || pass != "s3cret" {
		t.Errorf("upstream saw credentials %q/%q", user, pass)
	}
	if _, err := client.Group("alt.test"); err != nil {
		t.Errorf("Group after auth: %v", err)
	}
}

func TestConnectRejectsBadCredentials(t *testing.T) {
	host, port := startUpstream(t, "200 upstream ready", func(tc *textproto.Conn, verb string, args []string) bool {
		if verb == "AUTHINFO" && strings.ToUpper(args[0]) == "USER" {
			tc.PrintfLine("381 More authentication information required")
			return true
		}
		tc.PrintfLine("502 No permission")
		return true
	})

	client := New(Config{Host: host, Port: port, Username: "alice", Password: "wrong"})
	if err := client.Connect(); err == nil {
		t.Error("Connect succeeded with rejected credentials")
		client.Close()
	}
}

func TestPost(t *testing.T) {
	posted := make(chan []string, 1)
	host, port := startUpstream(t, "200 upstream ready", func(tc *textproto.Conn, verb string, args []string) bool {
		if verb != "POST" {
			tc.PrintfLine("500 command not recognized")
			return true
		}
		if err := tc.PrintfLine("340 Send article to be posted"); err != nil {
			return false
		}
		lines, err := tc.ReadDotLines()
		if err != nil {
			return false
		}
		posted <- lines
		tc.PrintfLine("240 Article received ok")
		return true
	})

	client := New(Config{Host: host, Port: port})
	if err := client.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	article := []string{"Subject: hi", "Newsgroups: alt.test", "", "body"}
	if err := client.Post(article); err != nil {
		t.Fatalf("Post: %v", err)
	}
	received := <-posted
	if strings.Join(received, "\n") != strings.Join(article, "\n") {
		t.Errorf("upstream received %q, want %q", received, article)
	}
}

func TestListGroupParsesNumbers(t *testing.T) {
	host, port := startUpstream(t, "200 upstream ready", func(tc *textproto.Conn, verb string, args []string) bool {
		if verb != "LISTGROUP" {
			tc.PrintfLine("500 command not recognized")
			return true
		}
		return sendDotLines(tc, "211 3 1 5 "+args[0]+" Article numbers follow",
			[]string{"1", "3", "5"})
	})

	client := New(Config{Host: host, Port: port})
	if err := client.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	numbers, err := client.ListGroup("alt.test")
	if err != nil {
		t.Fatalf("ListGroup: %v", err)
	}
	want := []int{1, 3, 5}
	if len(numbers) != len(want) {
		t.Fatalf("ListGroup = %v, want %v", numbers, want)
	}
	for i := range want {
		if numbers[i] != want[i] {
			t.Fatalf("ListGroup = %v, want %v", numbers, want)
		}
	}
}

func TestGroupNotFound(t *testing.T) {
	host, port := startUpstream(t, "200 upstream ready", func(tc *textproto.Conn, verb string, args []string) bool {
		tc.PrintfLine("411 no such news group")
		return true
	})

	client := New(Config{Host: host, Port: port})
	if err := client.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	if _, err := client.Group("no.such.group"); err == nil {
		t.Error("Group succeeded for missing group")
	}
}

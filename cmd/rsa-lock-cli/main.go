package main

func main() {
	runFromStdin()
}
